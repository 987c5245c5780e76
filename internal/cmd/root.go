package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/fmrest/fmrest-cli/internal/config"
	"github.com/fmrest/fmrest-cli/internal/debug"
	"github.com/fmrest/fmrest-cli/internal/dryrun"
	"github.com/fmrest/fmrest-cli/internal/fmrest"
	"github.com/fmrest/fmrest-cli/internal/iocontext"
	"github.com/fmrest/fmrest-cli/internal/outfmt"
	"github.com/fmrest/fmrest-cli/internal/tokenstore"
)

// rootFlags holds global CLI flags
type rootFlags struct {
	Output      string
	JSON        bool
	JQ          string
	Compact     bool
	Debug       bool
	Silent      bool
	Timeout     time.Duration
	Profile     string
	Print       []string
	MetricsFile string
	TokenStore  string
	DryRun      bool

	printSet fmrest.PrintSet
}

// flags holds the global command flags. It is package-level mutable state
// and MUST be reset at the start of every Execute() call; tests rely on it.
var flags = newRootFlags()

func newRootFlags() rootFlags {
	return rootFlags{
		Output:  defaultOutput(),
		Timeout: fmrest.DefaultTimeout,
	}
}

func defaultOutput() string {
	if value := strings.TrimSpace(os.Getenv("FMREST_OUTPUT")); value != "" {
		return value
	}
	return "text"
}

// Execute runs the root command
func Execute(ctx context.Context, args []string) error {
	// The .env file is loaded before the flag reset so env-driven defaults see it.
	if err := config.LoadDotEnv(""); err != nil {
		slog.Warn("ignoring .env file", "error", err)
	}

	flags = newRootFlags()

	root := &cobra.Command{
		Use:                "fmrest",
		Short:              "CLI for the FileMaker Data API",
		SilenceUsage:       true,
		SilenceErrors:      true,
		DisableSuggestions: true, // enhanceUnknownError provides did-you-mean
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if flags.JSON {
				if flagOrAliasChanged(cmd, "output") && flags.Output != "json" {
					return fmt.Errorf("--json conflicts with --output %s", flags.Output)
				}
				flags.Output = "json"
			}
			if flags.JQ != "" && flags.Output != "json" && flags.Output != "yaml" {
				if flagOrAliasChanged(cmd, "output") {
					return fmt.Errorf("--jq requires --output json or yaml (or --json)")
				}
				flags.Output = "json"
			}

			mode, err := outfmt.Parse(flags.Output)
			if err != nil {
				return err
			}
			ctx = outfmt.WithMode(ctx, mode)
			ctx = outfmt.WithCompact(ctx, flags.Compact)
			if flags.JQ != "" {
				ctx = outfmt.WithQuery(ctx, flags.JQ)
			}

			ioStreams := iocontext.GetIO(ctx)
			if flags.Silent {
				ioStreams = &iocontext.IO{Out: ioStreams.Out, ErrOut: io.Discard, In: ioStreams.In}
			}
			ctx = iocontext.WithIO(ctx, ioStreams)
			cmd.SetOut(ioStreams.Out)
			cmd.SetErr(ioStreams.ErrOut)

			debug.SetupLogger(flags.Debug)
			ctx = debug.WithDebug(ctx, flags.Debug)
			ctx = dryrun.WithDryRun(ctx, flags.DryRun)

			if flags.Timeout < 0 {
				return fmt.Errorf("--timeout must be >= 0")
			}
			if flags.TokenStore != "" {
				if _, err := tokenstore.ParseKind(flags.TokenStore); err != nil {
					return err
				}
			}
			printSet, err := parsePrintFlags(flags.Print)
			if err != nil {
				return err
			}
			flags.printSet = printSet

			cmd.SetContext(ctx)
			return nil
		},
	}

	root.SetContext(ctx)
	root.SetArgs(args)
	root.SetOut(iocontext.GetIO(ctx).Out)
	root.SetErr(iocontext.GetIO(ctx).ErrOut)

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.Output, "output", "o", flags.Output, "Output format: text|json|yaml (env FMREST_OUTPUT)")
	pf.BoolVarP(&flags.JSON, "json", "j", false, "Shorthand for --output json")
	pf.StringVar(&flags.JQ, "jq", "", "JQ expression to filter JSON output")
	pf.BoolVar(&flags.Compact, "compact-json", false, "Compact JSON output (no indentation)")
	pf.BoolVar(&flags.Debug, "debug", false, "Enable debug logging")
	pf.BoolVar(&flags.Silent, "silent", false, "Suppress non-error output to stderr")
	pf.DurationVar(&flags.Timeout, "timeout", flags.Timeout, "HTTP request timeout (e.g., 30s, 2m)")
	pf.StringVarP(&flags.Profile, "profile", "p", "", "Profile to use (env FMREST_PROFILE)")
	pf.StringArrayVar(&flags.Print, "print", nil, "Print a pipeline event to stderr: <event>[=<label>] or all (repeatable)")
	pf.StringVar(&flags.MetricsFile, "metrics-file", "", "Write Prometheus metrics for this run to a textfile")
	pf.StringVar(&flags.TokenStore, "token-store", "", "Where renewed session tokens are kept: keyring|redis|none (env FMREST_TOKEN_STORE)")
	pf.BoolVar(&flags.DryRun, "dry-run", false, "Preview changes without executing")

	flagAlias(pf, "output", "out")
	flagAlias(pf, "compact-json", "cj")
	flagAlias(pf, "debug", "dbg")
	flagAlias(pf, "silent", "sil")
	flagAlias(pf, "timeout", "to")
	flagAlias(pf, "profile", "pf")
	flagAlias(pf, "metrics-file", "mf")
	flagAlias(pf, "token-store", "ts")
	flagAlias(pf, "dry-run", "dr")

	_ = root.RegisterFlagCompletionFunc("print", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return append(fmrest.EventNames(), "all"), cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(newProfileCmd())
	root.AddCommand(newTokenCmd())
	root.AddCommand(newLogoutCmd())
	root.AddCommand(newProductInfoCmd())
	root.AddCommand(newDatabasesCmd())
	root.AddCommand(newLayoutsCmd())
	root.AddCommand(newLayoutMetadataCmd())
	root.AddCommand(newScriptsCmd())
	root.AddCommand(newRecordsCmd())
	root.AddCommand(newContainerCmd())
	root.AddCommand(newGlobalsCmd())
	root.AddCommand(newAPICmd())
	root.AddCommand(newCacheCmd())
	root.AddCommand(newVersionCmd())

	targetCmd, err := root.ExecuteC()
	if err != nil {
		if !errors.Is(err, errAlreadyHandled) {
			_, _ = fmt.Fprintln(root.ErrOrStderr(), enhanceUnknownError(err, root, targetCmd))
		}
		return err
	}
	return nil
}

// parsePrintFlags turns --print values into debug toggles. A value is an
// event name, optionally followed by "=label"; "all" enables every event.
// Without a label, lines are prefixed with "[event]".
func parsePrintFlags(values []string) (fmrest.PrintSet, error) {
	var set fmrest.PrintSet
	for _, value := range values {
		name, label, hasLabel := strings.Cut(value, "=")
		name = strings.TrimSpace(name)
		if strings.EqualFold(name, "all") {
			for _, n := range fmrest.EventNames() {
				ev, _ := fmrest.ParseEvent(n)
				set = set.Set(ev, fmrest.Print(defaultPrintLabel(ev, label, hasLabel)))
			}
			continue
		}
		ev, ok := fmrest.ParseEvent(name)
		if !ok {
			return fmrest.PrintSet{}, fmt.Errorf("invalid --print event %q (use one of %s, all)", name, strings.Join(fmrest.EventNames(), ", "))
		}
		set = set.Set(ev, fmrest.Print(defaultPrintLabel(ev, label, hasLabel)))
	}
	return set, nil
}

func defaultPrintLabel(ev fmrest.Event, label string, hasLabel bool) string {
	if hasLabel {
		return label
	}
	return "[" + ev.String() + "]"
}

// anyPrintActive reports whether at least one --print toggle is on.
func anyPrintActive(set fmrest.PrintSet) bool {
	for _, n := range fmrest.EventNames() {
		ev, _ := fmrest.ParseEvent(n)
		if set.Toggle(ev).Active {
			return true
		}
	}
	return false
}

// enhanceUnknownError adds "did you mean?" suggestions to unknown command/flag errors.
// targetCmd is the command Cobra resolved before the error (may be root itself).
func enhanceUnknownError(err error, root *cobra.Command, targetCmd *cobra.Command) string {
	msg := err.Error()

	if strings.Contains(msg, "unknown command") {
		if unknown := extractQuoted(msg); unknown != "" {
			parent := root
			if targetCmd != nil {
				parent = targetCmd
			}
			var names []string
			for _, c := range parent.Commands() {
				if c.IsAvailableCommand() || c.Name() == "help" {
					names = append(names, c.Name())
					names = append(names, c.Aliases...)
				}
			}
			if suggestion := suggestCommand(unknown, names); suggestion != "" {
				return fmt.Sprintf("%s\n\nDid you mean %q?", msg, suggestion)
			}
		}
		return msg
	}

	if strings.Contains(msg, "unknown flag") || strings.Contains(msg, "unknown shorthand flag") {
		unknown := extractFlag(msg)
		if unknown == "" {
			return msg
		}
		seen := make(map[string]bool)
		var flagNames []string
		addFlags := func(fs *pflag.FlagSet) {
			fs.VisitAll(func(f *pflag.Flag) {
				for _, name := range []string{"--" + f.Name, shorthand(f)} {
					if name != "" && !seen[name] {
						seen[name] = true
						flagNames = append(flagNames, name)
					}
				}
			})
		}
		helpCmd := "fmrest --help"
		if targetCmd != nil {
			addFlags(targetCmd.Flags())
			addFlags(targetCmd.InheritedFlags())
			helpCmd = targetCmd.CommandPath() + " --help"
		} else {
			addFlags(root.PersistentFlags())
		}
		if suggestion := suggestFlag(unknown, flagNames); suggestion != "" {
			return fmt.Sprintf("%s\n\nDid you mean %q?\nRun %q to see supported flags.", msg, suggestion, helpCmd)
		}
		return fmt.Sprintf("%s\n\nRun %q to see supported flags.", msg, helpCmd)
	}

	return msg
}

func shorthand(f *pflag.Flag) string {
	if f.Shorthand == "" {
		return ""
	}
	return "-" + f.Shorthand
}

// extractQuoted extracts the first double-quoted substring from s.
func extractQuoted(s string) string {
	start := strings.IndexByte(s, '"')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(s[start+1:], '"')
	if end < 0 {
		return ""
	}
	return s[start+1 : start+1+end]
}

// extractFlag extracts a flag name (e.g., "--foo" or "-x") from an error message.
func extractFlag(s string) string {
	idx := strings.Index(s, "--")
	if idx < 0 {
		// "unknown shorthand flag: 'a' in -a"
		idx = strings.LastIndex(s, " -")
		if idx < 0 {
			return ""
		}
		idx++
	}
	rest := s[idx:]
	if end := strings.IndexByte(rest, ' '); end >= 0 {
		rest = rest[:end]
	}
	rest = strings.TrimRight(rest, ".,;:!?\"'")
	if len(rest) < 2 || rest[0] != '-' {
		return ""
	}
	return rest
}
