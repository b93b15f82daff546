package replay

import (
	"fmt"
	"io"

	"golang.org/x/exp/slog"
)

func hexAddress(address uint64) string {
	return fmt.Sprintf("0x%x", address)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
