package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/fmrest/fmrest-cli/internal/dryrun"
	"github.com/fmrest/fmrest-cli/internal/fmrest"
	"github.com/fmrest/fmrest-cli/internal/iocontext"
	"github.com/fmrest/fmrest-cli/internal/outfmt"
)

// cmdContext returns the command context
func cmdContext(cmd *cobra.Command) context.Context {
	return cmd.Context()
}

// isStructured checks if the command context wants JSON or YAML output
func isStructured(cmd *cobra.Command) bool {
	return outfmt.IsStructured(cmd.Context())
}

// printStructured outputs data as JSON or YAML with the optional --jq filter applied.
func printStructured(cmd *cobra.Command, v any) error {
	ctx := cmd.Context()
	ioStreams := iocontext.GetIO(ctx)
	return outfmt.WriteFiltered(ioStreams.Out, v, outfmt.ModeFromContext(ctx), outfmt.GetQuery(ctx), outfmt.IsCompact(ctx))
}

func newFormatter(cmd *cobra.Command) *outfmt.Formatter {
	ioStreams := iocontext.GetIO(cmd.Context())
	return outfmt.NewFormatter(cmd.Context(), ioStreams.Out, ioStreams.ErrOut)
}

// maybeDryRun prints a preview of req instead of sending it when --dry-run
// is set. It reports whether the preview replaced the call.
func maybeDryRun(cmd *cobra.Command, operation, resource string, req *fmrest.Request, warnings ...string) (bool, error) {
	if !dryrun.IsEnabled(cmd.Context()) {
		return false, nil
	}
	preview := &dryrun.Preview{
		Operation: operation,
		Resource:  resource,
		Method:    string(req.Method),
		URL:       req.URL,
		Body:      previewBody(req),
		Warnings:  warnings,
	}
	if isStructured(cmd) {
		return true, printStructured(cmd, preview.Payload())
	}
	preview.Write(iocontext.GetIO(cmd.Context()).Out)
	return true, nil
}

func previewBody(req *fmrest.Request) any {
	if len(req.Body) == 0 {
		return nil
	}
	ct := req.ContentType()
	if strings.HasPrefix(ct, "application/json") {
		var v any
		if json.Unmarshal(req.Body, &v) == nil {
			return v
		}
	}
	if strings.HasPrefix(ct, "multipart/") {
		return fmt.Sprintf("multipart upload (%d bytes)", len(req.Body))
	}
	return fmt.Sprintf("%d bytes", len(req.Body))
}

// aliasBridgeValue wraps a pflag.Value so that Set() on the alias also
// marks the canonical flag as Changed. Aliases then satisfy Cobra's
// MarkFlagRequired check.
type aliasBridgeValue struct {
	pflag.Value
	canonical *pflag.Flag
}

func (v *aliasBridgeValue) Set(s string) error {
	if err := v.Value.Set(s); err != nil {
		return err
	}
	v.canonical.Changed = true
	return nil
}

// aliasBridgeSliceValue forwards pflag.SliceValue for repeatable flags.
type aliasBridgeSliceValue struct {
	aliasBridgeValue
	slice pflag.SliceValue
}

func (v *aliasBridgeSliceValue) Append(s string) error     { return v.slice.Append(s) }
func (v *aliasBridgeSliceValue) Replace(ss []string) error { return v.slice.Replace(ss) }
func (v *aliasBridgeSliceValue) GetSlice() []string        { return v.slice.GetSlice() }

// flagAlias registers a hidden alias for an existing flag. Both flags share
// the same Value; the alias is annotated so flagOrAliasChanged can find it.
func flagAlias(fs *pflag.FlagSet, name, alias string) {
	f := fs.Lookup(name)
	if f == nil {
		panic(fmt.Sprintf("flagAlias: flag %q not found", name))
	}
	a := *f
	a.Name = alias
	a.Shorthand = ""
	a.Usage = ""
	a.Hidden = true
	bridge := &aliasBridgeValue{Value: f.Value, canonical: f}
	if sv, ok := f.Value.(pflag.SliceValue); ok {
		a.Value = &aliasBridgeSliceValue{aliasBridgeValue: *bridge, slice: sv}
	} else {
		a.Value = bridge
	}
	// The alias is never independently required.
	ann := map[string][]string{"alias-of": {name}}
	for k, v := range f.Annotations {
		if k == cobra.BashCompOneRequiredFlag {
			continue
		}
		ann[k] = v
	}
	a.Annotations = ann
	fs.AddFlag(&a)
}

// flagOrAliasChanged returns true if the named flag or any of its
// hidden aliases was explicitly set by the user.
func flagOrAliasChanged(cmd *cobra.Command, name string) bool {
	if cmd.Flags().Changed(name) || cmd.InheritedFlags().Changed(name) {
		return true
	}
	aliasChanged := func(fs *pflag.FlagSet) bool {
		found := false
		fs.VisitAll(func(f *pflag.Flag) {
			if found {
				return
			}
			if ann, ok := f.Annotations["alias-of"]; ok && len(ann) > 0 && ann[0] == name && fs.Changed(f.Name) {
				found = true
			}
		})
		return found
	}
	return aliasChanged(cmd.Flags()) || aliasChanged(cmd.InheritedFlags())
}

// errAlreadyHandled is a sentinel error indicating the error was already printed to stderr.
// Commands using RunE return it so Cobra reports failure without printing again.
var errAlreadyHandled = errors.New("error already handled")

type handledError struct {
	err      error
	exitCode int
}

func (e *handledError) Error() string {
	return e.err.Error()
}

func (e *handledError) Unwrap() error {
	return errAlreadyHandled
}

func (e *handledError) ExitCode() int {
	return e.exitCode
}

// RunE wraps a command function with enhanced error handling
func RunE(fn func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if err == nil {
			return nil
		}
		ioStreams := iocontext.GetIO(cmd.Context())
		if isStructured(cmd) {
			ctx := cmd.Context()
			_ = outfmt.WriteFiltered(ioStreams.ErrOut, errorPayload(err), outfmt.ModeFromContext(ctx), "", outfmt.IsCompact(ctx))
		} else {
			_, _ = fmt.Fprint(ioStreams.ErrOut, HandleError(err))
		}
		return &handledError{err: err, exitCode: ExitCode(err)}
	}
}

// ParseIntList parses record IDs given as separate arguments or comma-separated lists.
func ParseIntList(args []string) ([]int, error) {
	var result []int
	for _, arg := range args {
		for _, p := range strings.Split(arg, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			id, err := strconv.Atoi(p)
			if err != nil {
				return nil, fmt.Errorf("invalid record ID %q: %w", p, err)
			}
			if id <= 0 {
				return nil, fmt.Errorf("record ID must be positive: %d", id)
			}
			result = append(result, id)
		}
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("no valid record IDs provided")
	}
	return result, nil
}

// parseField parses a key=value field where value is a string
func parseField(field string) (string, string, error) {
	key, value, ok := strings.Cut(field, "=")
	if !ok || key == "" {
		return "", "", fmt.Errorf("invalid field format %q: must be key=value", field)
	}
	return key, value, nil
}

// parseRawField parses a key=value field where value is JSON. Values that are
// not valid JSON are kept as strings.
func parseRawField(field string) (string, any, error) {
	key, raw, ok := strings.Cut(field, "=")
	if !ok || key == "" {
		return "", nil, fmt.Errorf("invalid raw field format %q: must be key=value", field)
	}
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return key, raw, nil
	}
	return key, value, nil
}

// maskToken hides all but the first and last 4 characters of a token.
func maskToken(token string) string {
	if len(token) < 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}

// sortedKeys returns the keys of m in lexical order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
