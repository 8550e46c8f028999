package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/1broseidon/displayd/internal/ipc"
)

func printPresentUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: displayd present <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  begin [--session ID] [--source S]        Arm a session and hide docks")
	fmt.Fprintln(w, "  ready --session ID [--suppressible]      Report data ready")
	fmt.Fprintln(w, "  release --session ID                     Release a session")
	fmt.Fprintln(w, "  list [--json]                            List sessions")
}

func runPresent(args []string) int {
	if len(args) == 0 {
		printPresentUsage(os.Stderr)
		return 2
	}

	switch args[0] {
	case "begin":
		return runPresentBegin(args[1:])
	case "ready":
		return runPresentReady(args[1:])
	case "release":
		return runPresentRelease(args[1:])
	case "list":
		return runPresentList(args[1:])
	case "help", "-h", "--help":
		printPresentUsage(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown present command: %s\n\n", args[0])
		printPresentUsage(os.Stderr)
		return 2
	}
}

func runPresentBegin(args []string) int {
	fs := flag.NewFlagSet("present begin", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	session := fs.String("session", "", "Session id to (re-)arm (default: new session)")
	source := fs.String("source", "cli", "Label recorded with the session")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	info, err := ipc.NewClient().PresentBegin(*session, *source)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println(info.ID)
	return 0
}

func runPresentReady(args []string) int {
	fs := flag.NewFlagSet("present ready", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	session := fs.String("session", "", "Session id (required)")
	suppressible := fs.Bool("suppressible", false, "Keep docks hidden until release")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if *session == "" {
		fmt.Fprintln(os.Stderr, "--session is required")
		return 2
	}

	info, err := ipc.NewClient().PresentDataReady(*session, *suppressible)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("%s: %s\n", info.ID, info.Phase)
	return 0
}

func runPresentRelease(args []string) int {
	fs := flag.NewFlagSet("present release", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	session := fs.String("session", "", "Session id (required)")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if *session == "" {
		fmt.Fprintln(os.Stderr, "--session is required")
		return 2
	}

	info, err := ipc.NewClient().PresentRelease(*session)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("%s: %s\n", info.ID, info.Phase)
	return 0
}

func runPresentList(args []string) int {
	fs := flag.NewFlagSet("present list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "Output as JSON")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	data, err := ipc.NewClient().PresentList()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *asJSON {
		return printJSON(os.Stdout, data)
	}
	printSessions(os.Stdout, data.Sessions, isTerminal(os.Stdout))
	return 0
}
