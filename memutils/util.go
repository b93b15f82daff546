package memutils

import (
	cerrors "github.com/cockroachdb/errors"
)

type Number interface {
	~int | ~uint | ~uint64
}

func CheckPow2[T Number](number T, name string) error {
	if number == 0 || number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

func AlignDown[T Number](value T, alignment T) T {
	return value & ^(alignment - 1)
}

// IsAligned reports whether value is a multiple of alignment, which must be a power of two
func IsAligned[T Number](value T, alignment T) bool {
	return AlignDown(value, alignment) == value
}
