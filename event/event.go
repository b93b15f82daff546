package event

import (
	"fmt"
	"strings"
)

// Kind identifies the allocator call that produced a record
type Kind uint32

const (
	KindMalloc Kind = iota
	KindFree
	KindReallocBegin
	KindReallocEnd
)

var kindMapping = map[Kind]string{
	KindMalloc:       "malloc",
	KindFree:         "free",
	KindReallocBegin: "realloc-begin",
	KindReallocEnd:   "realloc-end",
}

// String returns the action token used for the kind in log records
func (k Kind) String() string {
	return kindMapping[k]
}

// Event is one decoded log record. Args holds the raw argument tokens in record order; the
// numeric fields hold their decoded values, and are only meaningful for the kinds that carry them:
//
//   - KindMalloc: Size, Pointer
//   - KindFree: Pointer
//   - KindReallocBegin: OldPointer
//   - KindReallocEnd: OldPointer, Size, Pointer
type Event struct {
	Seq  uint64
	Kind Kind
	Args []string

	Size       uint64
	Pointer    uint64
	OldPointer uint64
}

// String renders the event as a canonical log record
func (e Event) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d %s", e.Seq, e.Kind)

	switch e.Kind {
	case KindMalloc:
		fmt.Fprintf(&sb, " %d 0x%x", e.Size, e.Pointer)
	case KindFree:
		fmt.Fprintf(&sb, " 0x%x", e.Pointer)
	case KindReallocBegin:
		fmt.Fprintf(&sb, " 0x%x", e.OldPointer)
	case KindReallocEnd:
		fmt.Fprintf(&sb, " 0x%x %d 0x%x", e.OldPointer, e.Size, e.Pointer)
	}

	return sb.String()
}

// Malloc builds a KindMalloc event
func Malloc(seq, size, pointer uint64) Event {
	return build(Event{Seq: seq, Kind: KindMalloc, Size: size, Pointer: pointer})
}

// Free builds a KindFree event
func Free(seq, pointer uint64) Event {
	return build(Event{Seq: seq, Kind: KindFree, Pointer: pointer})
}

// ReallocBegin builds a KindReallocBegin event
func ReallocBegin(seq, oldPointer uint64) Event {
	return build(Event{Seq: seq, Kind: KindReallocBegin, OldPointer: oldPointer})
}

// ReallocEnd builds a KindReallocEnd event
func ReallocEnd(seq, oldPointer, size, pointer uint64) Event {
	return build(Event{Seq: seq, Kind: KindReallocEnd, OldPointer: oldPointer, Size: size, Pointer: pointer})
}

// build fills in Args from the typed fields, so that constructed events are identical to decoded ones
func build(e Event) Event {
	e.Args = strings.Fields(e.String())[2:]
	return e
}
