package memutils

import (
	"github.com/cockroachdb/errors"
)

// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
var PowerOfTwoError error = errors.New("number must be a power of two")

// The failure kinds a validation run can end with. Every error returned from the replay
// pipeline wraps exactly one of these, so callers classify failures with errors.Is.
var (
	// ErrMalformedRecord indicates a log line that does not parse into a known event shape
	ErrMalformedRecord = errors.New("malformed record")
	// ErrUnknownAction indicates a log line whose action token is not one of the known event kinds
	ErrUnknownAction = errors.New("unknown action")
	// ErrSequenceGap indicates that the merged log could not produce the next expected sequence
	// number, because it was missing, duplicated or out of order
	ErrSequenceGap = errors.New("sequence gap")
	// ErrIncompleteLog indicates that the log sources ended before the full sequence range was delivered
	ErrIncompleteLog = errors.New("incomplete log")
	// ErrMisalignedPointer indicates an allocated payload pointer that is not suitably aligned
	ErrMisalignedPointer = errors.New("misaligned pointer")
	// ErrOverlappingPayload indicates a newly allocated payload that intersects a live payload
	ErrOverlappingPayload = errors.New("overlapping payload")
	// ErrInvalidFree indicates a free or realloc of a pointer that is not the start of a live payload
	ErrInvalidFree = errors.New("invalid free")
)

var errorKindMapping = []struct {
	err  error
	name string
}{
	{ErrMalformedRecord, "MalformedRecord"},
	{ErrUnknownAction, "UnknownAction"},
	{ErrSequenceGap, "SequenceGap"},
	{ErrIncompleteLog, "IncompleteLog"},
	{ErrMisalignedPointer, "MisalignedPointer"},
	{ErrOverlappingPayload, "OverlappingPayload"},
	{ErrInvalidFree, "InvalidFree"},
}

// ErrorKind names the failure kind err is marked with, or returns "Unknown" if it carries none
func ErrorKind(err error) string {
	for _, kind := range errorKindMapping {
		if errors.Is(err, kind.err) {
			return kind.name
		}
	}

	return "Unknown"
}
