package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Controller is the part of the engine driven from the keyboard.
type Controller interface {
	Suspend(ctx context.Context, autoResume bool) error
	Resume(ctx context.Context) error
	Reset(ctx context.Context) error
}

const keysHelp = "keys: s=suspend r=resume x=reset q=quit (followed by Enter)"

// runKeys executes one command per input line until q, EOF or ctx is
// done. Unknown input prints the key help. It reports whether q was read.
func runKeys(ctx context.Context, in io.Reader, ctl Controller, w io.Writer) (bool, error) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return false, nil
		}
		key := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if key == "" {
			continue
		}

		var err error
		switch key {
		case "s":
			if err = ctl.Suspend(ctx, false); err == nil {
				fmt.Fprintln(w, "✓ Meter suspended")
			}
		case "r":
			if err = ctl.Resume(ctx); err == nil {
				fmt.Fprintln(w, "✓ Meter resumed")
			}
		case "x":
			if err = ctl.Reset(ctx); err == nil {
				fmt.Fprintln(w, "✓ Meter reset")
			}
		case "q":
			return true, nil
		default:
			fmt.Fprintln(w, keysHelp)
		}
		if err != nil {
			return false, fmt.Errorf("command %q failed: %w", key, err)
		}
	}
	return false, scanner.Err()
}
