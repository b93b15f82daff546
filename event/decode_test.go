package event_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/heapcheck/event"
	"github.com/vkngwrapper/heapcheck/memutils"
)

func TestDecodeKinds(t *testing.T) {
	e, err := event.Decode("0 malloc 16 0x0")
	require.NoError(t, err)
	require.Equal(t, event.Malloc(0, 16, 0), e)

	e, err = event.Decode("1 free 0x7f3a10")
	require.NoError(t, err)
	require.Equal(t, event.Free(1, 0x7f3a10), e)

	e, err = event.Decode("2 realloc-begin 0x7f3a10")
	require.NoError(t, err)
	require.Equal(t, event.ReallocBegin(2, 0x7f3a10), e)

	e, err = event.Decode("3 realloc-end 0x7f3a10 48 0x7f3a40")
	require.NoError(t, err)
	require.Equal(t, event.ReallocEnd(3, 0x7f3a10, 48, 0x7f3a40), e)
	require.Equal(t, []string{"0x7f3a10", "48", "0x7f3a40"}, e.Args)
}

func TestDecodeTolerantWhitespaceAndHex(t *testing.T) {
	e, err := event.Decode("  42\tmalloc  24   7F3A18 \r")
	require.NoError(t, err)
	require.Equal(t, uint64(42), e.Seq)
	require.Equal(t, event.KindMalloc, e.Kind)
	require.Equal(t, uint64(24), e.Size)
	require.Equal(t, uint64(0x7f3a18), e.Pointer)

	e, err = event.Decode("43 free 0X7F3A18")
	require.NoError(t, err)
	require.Equal(t, uint64(0x7f3a18), e.Pointer)
}

func TestDecodeReallocBeginWithRequestedSize(t *testing.T) {
	e, err := event.Decode("3 realloc-begin 0x7f3a10 48")
	require.NoError(t, err)
	require.Equal(t, uint64(3), e.Seq)
	require.Equal(t, event.KindReallocBegin, e.Kind)
	require.Equal(t, uint64(0x7f3a10), e.OldPointer)
	require.Equal(t, uint64(0), e.Size)
	require.Equal(t, []string{"0x7f3a10", "48"}, e.Args)

	e, err = event.Decode("4 realloc-begin 0 16")
	require.NoError(t, err)
	require.Equal(t, uint64(0), e.OldPointer)
}

func TestDecodeUnknownAction(t *testing.T) {
	_, err := event.Decode("7 calloc 4 0x10")
	require.Error(t, err)
	require.True(t, errors.Is(err, memutils.ErrUnknownAction))
	require.False(t, errors.Is(err, memutils.ErrMalformedRecord))
}

func TestDecodeMalformed(t *testing.T) {
	for _, line := range []string{
		"",
		"   ",
		"12",
		"-1 malloc 16 0x0",
		"x malloc 16 0x0",
		"1 malloc 16",
		"1 malloc 16 0x0 0x8",
		"1 malloc 0x10 0x0",
		"1 malloc 16 0xzz",
		"1 free",
		"1 realloc-begin 0x0 0x8",
		"1 realloc-begin 0x0 16 32",
		"1 realloc-end 0x0 16",
		"1 realloc-end 0x0 sixteen 0x8",
	} {
		_, err := event.Decode(line)
		require.Error(t, err, line)
		require.True(t, errors.Is(err, memutils.ErrMalformedRecord), line)
	}
}

func TestEventStringRoundTrip(t *testing.T) {
	for _, e := range []event.Event{
		event.Malloc(0, 16, 0x10),
		event.Free(1, 0x10),
		event.ReallocBegin(2, 0x20),
		event.ReallocEnd(3, 0x20, 0, 0x28),
	} {
		decoded, err := event.Decode(e.String())
		require.NoError(t, err)
		require.Equal(t, e, decoded)
	}

	require.Equal(t, "3 realloc-end 0x20 0 0x28", event.ReallocEnd(3, 0x20, 0, 0x28).String())
}
