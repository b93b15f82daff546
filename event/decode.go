package event

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/heapcheck/memutils"
)

type argCount struct {
	min, max int
}

// realloc-begin records may carry the requested size after the old pointer. It is checked but not
// used, since the matching realloc-end repeats it.
var argCounts = map[Kind]argCount{
	KindMalloc:       {2, 2},
	KindFree:         {1, 1},
	KindReallocBegin: {1, 2},
	KindReallocEnd:   {3, 3},
}

// ParseKind maps an action token to its Kind. The returned error is marked with
// memutils.ErrUnknownAction.
func ParseKind(action string) (Kind, error) {
	for kind, token := range kindMapping {
		if token == action {
			return kind, nil
		}
	}

	return 0, errors.Mark(errors.Newf("unknown action %q", action), memutils.ErrUnknownAction)
}

// Decode parses one log record. Fields may be separated by any run of whitespace. Errors are marked
// with memutils.ErrUnknownAction when the action token is not recognized and with
// memutils.ErrMalformedRecord for every other problem.
func Decode(line string) (Event, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Event{}, malformed("record %q has no action", line)
	}

	seq, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return Event{}, malformed("sequence number %q is not a non-negative decimal integer", fields[0])
	}

	kind, err := ParseKind(fields[1])
	if err != nil {
		return Event{}, err
	}

	e := Event{Seq: seq, Kind: kind, Args: fields[2:]}
	count := argCounts[kind]
	if len(e.Args) < count.min || len(e.Args) > count.max {
		if count.min == count.max {
			return Event{}, malformed("%s record takes %d arguments, found %d", kind, count.min, len(e.Args))
		}
		return Event{}, malformed("%s record takes %d to %d arguments, found %d", kind, count.min, count.max, len(e.Args))
	}

	switch kind {
	case KindMalloc:
		e.Size, err = parseSize(e.Args[0])
		if err == nil {
			e.Pointer, err = parsePointer(e.Args[1])
		}
	case KindFree:
		e.Pointer, err = parsePointer(e.Args[0])
	case KindReallocBegin:
		e.OldPointer, err = parsePointer(e.Args[0])
		if err == nil && len(e.Args) > 1 {
			_, err = parseSize(e.Args[1])
		}
	case KindReallocEnd:
		e.OldPointer, err = parsePointer(e.Args[0])
		if err == nil {
			e.Size, err = parseSize(e.Args[1])
		}
		if err == nil {
			e.Pointer, err = parsePointer(e.Args[2])
		}
	}
	if err != nil {
		return Event{}, errors.Wrapf(err, "%s record %d", kind, seq)
	}

	return e, nil
}

func parseSize(token string) (uint64, error) {
	size, err := strconv.ParseUint(token, 10, 64)
	if err != nil {
		return 0, malformed("size %q is not a decimal integer", token)
	}
	return size, nil
}

func parsePointer(token string) (uint64, error) {
	digits := token
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		digits = digits[2:]
	}

	pointer, err := strconv.ParseUint(digits, 16, 64)
	if err != nil {
		return 0, malformed("pointer %q is not a hexadecimal address", token)
	}
	return pointer, nil
}

func malformed(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), memutils.ErrMalformedRecord)
}
