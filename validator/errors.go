package validator

import (
	"fmt"

	"github.com/vkngwrapper/heapcheck/memutils"
)

// ValidationError is the error a failed validation run ends with. It pins the failure to the sequence
// number being processed and the log source that supplied it. Err is marked with one of the memutils
// failure kinds, which errors.Is sees through ValidationError.
type ValidationError struct {
	Seq    uint64
	Source string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s at seq %d in %s", e.Err, e.Seq, e.Source)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Kind names the failure kind of the error, such as "OverlappingPayload"
func (e *ValidationError) Kind() string {
	return memutils.ErrorKind(e.Err)
}
