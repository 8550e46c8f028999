package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/1broseidon/displayd/internal/config"
	"github.com/1broseidon/displayd/internal/ipc"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		os.Exit(runDaemon(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "displays":
		os.Exit(runDisplays(os.Args[2:]))
	case "refresh":
		os.Exit(runRefresh(os.Args[2:]))
	case "present":
		os.Exit(runPresent(os.Args[2:]))
	case "accurate":
		os.Exit(runAccurate(os.Args[2:]))
	case "watch":
		os.Exit(runWatch(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: displayd <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Start the displayd daemon (foreground)")
	fmt.Fprintln(w, "  status              Show daemon status")
	fmt.Fprintln(w, "  displays            List tracked displays")
	fmt.Fprintln(w, "  refresh             Re-read display geometry")
	fmt.Fprintln(w, "  watch               Stream rotation changes")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  present begin       Start a presentation session (hides docks)")
	fmt.Fprintln(w, "  present ready       Report session data ready")
	fmt.Fprintln(w, "  present release     Release a presentation session")
	fmt.Fprintln(w, "  present list        List presentation sessions")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  accurate start      Subscribe to RandR change events")
	fmt.Fprintln(w, "  accurate stop       Drop an accurate-mode subscription")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print effective configuration")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'displayd <command> --help' for command-specific options.")
}

// parseFlags parses args and maps the outcome to an exit code. ok is false
// when the caller should return code.
func parseFlags(fs *flag.FlagSet, args []string) (code int, ok bool) {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0, false
		}
		return 2, false
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(os.Stderr, "%s takes no arguments\n", fs.Name())
		fs.Usage()
		return 2, false
	}
	return 0, true
}

// displayFlag registers --display; the returned func yields nil when unset.
func displayFlag(fs *flag.FlagSet) func() *int {
	id := fs.Int("display", -1, "Display id (default: all displays)")
	return func() *int {
		if *id < 0 {
			return nil
		}
		return id
	}
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: displayd status")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show daemon status via IPC.")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	status, err := ipc.NewClient().GetStatus()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("daemon_running:     %v\n", status.DaemonRunning)
	fmt.Printf("uptime_seconds:     %d\n", status.UptimeSeconds)
	fmt.Printf("display_count:      %d\n", status.DisplayCount)
	fmt.Printf("accurate:           %v\n", status.Accurate)
	fmt.Printf("accurate_listeners: %d\n", status.AccurateListeners)
	fmt.Printf("suppressed:         %v\n", status.Suppressed)
	fmt.Printf("outstanding_tokens: %d\n", status.OutstandingTokens)
	fmt.Printf("armed_sessions:     %d\n", status.ArmedSessions)
	fmt.Printf("sessions:           %d\n", status.Sessions)
	return 0
}

func runDisplays(args []string) int {
	fs := flag.NewFlagSet("displays", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "Output as JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: displayd displays [--json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "List displays with logical size, physical size and rotation.")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	data, err := ipc.NewClient().GetDisplays()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *asJSON {
		return printJSON(os.Stdout, data)
	}
	printDisplays(os.Stdout, data.Displays, isTerminal(os.Stdout))
	return 0
}

func runRefresh(args []string) int {
	fs := flag.NewFlagSet("refresh", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	display := displayFlag(fs)
	asJSON := fs.Bool("json", false, "Output as JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: displayd refresh [--display N] [--json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Re-read display geometry from the X server.")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	data, err := ipc.NewClient().Refresh(display())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *asJSON {
		return printJSON(os.Stdout, data)
	}
	printDisplays(os.Stdout, data.Displays, isTerminal(os.Stdout))
	return 0
}

func printAccurateUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: displayd accurate <start|stop>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Accurate mode subscribes to RandR change events while at least one")
	fmt.Fprintln(w, "listener is registered; otherwise displays are polled.")
}

func runAccurate(args []string) int {
	if len(args) != 1 {
		printAccurateUsage(os.Stderr)
		return 2
	}

	client := ipc.NewClient()
	var (
		data *ipc.AccurateData
		err  error
	)
	switch args[0] {
	case "start":
		data, err = client.AccurateStart()
	case "stop":
		data, err = client.AccurateStop()
	case "help", "-h", "--help":
		printAccurateUsage(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown accurate command: %s\n\n", args[0])
		printAccurateUsage(os.Stderr)
		return 2
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("accurate: %v (listeners: %d)\n", data.Accurate, data.Listeners)
	return 0
}

func runConfig(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  displayd config validate [--path PATH]")
		fmt.Fprintln(os.Stderr, "  displayd config print [--path PATH] [--defaults|--sources]")
		return 2
	}

	switch args[0] {
	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/displayd/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		res, err := loadConfig(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if len(res.Files) == 0 {
			fmt.Println("config: ok (defaults)")
		} else {
			fmt.Printf("config: ok (%s)\n", strings.Join(res.Files, ", "))
		}
		return 0

	case "print":
		fs := flag.NewFlagSet("print", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/displayd/config.yaml)")
		printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
		printSources := fs.Bool("sources", false, "Print where each overridden value came from")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		cfg := config.DefaultConfig()
		var res *config.LoadResult
		if !*printDefaults {
			var err error
			res, err = loadConfig(*path)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			cfg = res.Config
		}

		if *printSources && res != nil {
			for _, p := range res.SourcePaths() {
				fmt.Printf("# %s: %s\n", p, res.SourceFor(p))
			}
		}
		data, err := cfg.Marshal()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(string(data))
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args[0])
		return 2
	}
}

func loadConfig(path string) (*config.LoadResult, error) {
	if path == "" {
		return config.LoadWithSources()
	}
	return config.LoadFromPath(path)
}
