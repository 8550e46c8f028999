package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/1broseidon/displayd/internal/ipc"
)

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	display := displayFlag(fs)
	asJSON := fs.Bool("json", false, "Emit one JSON object per event")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: displayd watch [--display N] [--json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Stream rotation changes until interrupted. Without --display, displays connected later are included.")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	styled := !*asJSON && isTerminal(os.Stdout)
	enc := json.NewEncoder(os.Stdout)
	err := ipc.NewClient().Watch(ctx, display(), func(ev ipc.RotationEvent) error {
		if *asJSON {
			return enc.Encode(ev)
		}
		_, err := fmt.Fprintln(os.Stdout, formatRotationEvent(ev, styled))
		return err
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
