package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fmrest/fmrest-cli/internal/cache"
	"github.com/fmrest/fmrest-cli/internal/fmrest"
	"github.com/fmrest/fmrest-cli/internal/iocontext"
	"github.com/fmrest/fmrest-cli/internal/resolve"
)

func newProductInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "product-info",
		Aliases: []string{"info"},
		Short:   "Show FileMaker Server product information",
		Example: "fmrest product-info --json",
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer closeSession(s)

			ctx := cmdContext(cmd)
			req := fmrest.NewRequest(s.optionalCredentials(ctx), s.Profile.Host, s.Config, fmrest.MethodGet, fmrest.ProductInfo(), nil)
			env, err := call[fmrest.ProductInfoResponse](ctx, s, req)
			if err != nil {
				return err
			}
			if env.Response == nil {
				return &fmrest.Error{Kind: fmrest.KindDecoding, Err: fmt.Errorf("empty product info")}
			}

			if isStructured(cmd) {
				return printStructured(cmd, env.Response)
			}
			info := env.Response.ProductInfo
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Name: %s\n", info.Name)
			_, _ = fmt.Fprintf(out, "Version: %s\n", info.Version)
			_, _ = fmt.Fprintf(out, "Build date: %s\n", info.BuildDate)
			_, _ = fmt.Fprintf(out, "Date format: %s\n", info.DateFormat)
			_, _ = fmt.Fprintf(out, "Time format: %s\n", info.TimeFormat)
			_, _ = fmt.Fprintf(out, "Timestamp format: %s\n", info.TimeStampFormat)
			return nil
		}),
	}
}

func newDatabasesCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "databases",
		Aliases: []string{"dbs"},
		Short:   "List hosted databases",
		Example: "fmrest databases",
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer closeSession(s)

			ctx := cmdContext(cmd)
			req := fmrest.NewRequest(s.optionalCredentials(ctx), s.Profile.Host, s.Config, fmrest.MethodGet, fmrest.Databases(), nil)
			env, err := call[fmrest.DatabaseList](ctx, s, req)
			if err != nil {
				return err
			}
			list := fmrest.DatabaseList{}
			if env.Response != nil {
				list = *env.Response
			}

			f := newFormatter(cmd)
			if ok, err := f.Output(list); ok {
				return err
			}
			if len(list.Databases) == 0 {
				f.Empty("No databases found.")
				return nil
			}
			f.StartTable("NAME")
			for _, db := range list.Databases {
				f.Row(db.Name)
			}
			return f.EndTable()
		}),
	}
}

func newLayoutsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "layouts",
		Aliases: []string{"ly"},
		Short:   "List the layouts of the database",
		Example: "fmrest layouts",
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer closeSession(s)

			list, err := fetchLayouts(cmdContext(cmd), s)
			if err != nil {
				return err
			}

			f := newFormatter(cmd)
			if ok, err := f.Output(list); ok {
				return err
			}
			if len(list.Layouts) == 0 {
				f.Empty("No layouts found.")
				return nil
			}
			f.StartTable("LAYOUT", "TABLE")
			var walk func(entries []fmrest.LayoutEntry, prefix string)
			walk = func(entries []fmrest.LayoutEntry, prefix string) {
				for _, e := range entries {
					if e.IsFolder {
						walk(e.FolderLayout, prefix+e.Name+"/")
						continue
					}
					f.Row(prefix+e.Name, valueOrDash(e.Table))
				}
			}
			walk(list.Layouts, "")
			return f.EndTable()
		}),
	}
}

func fetchLayouts(ctx context.Context, s *session) (fmrest.LayoutList, error) {
	db, err := s.Database()
	if err != nil {
		return fmrest.LayoutList{}, err
	}
	req, err := s.Request(ctx, fmrest.MethodGet, fmrest.Layouts(db), nil)
	if err != nil {
		return fmrest.LayoutList{}, err
	}
	env, err := call[fmrest.LayoutList](ctx, s, req)
	if err != nil {
		return fmrest.LayoutList{}, err
	}
	if env.Response == nil {
		return fmrest.LayoutList{}, nil
	}
	if store := layoutCache(s); store != nil {
		store.Put(env.Response.Names())
	}
	return *env.Response, nil
}

// layoutCache is the on-disk cache of the session database's layout names,
// or nil when no cache directory is available.
func layoutCache(s *session) *cache.Store {
	db, err := s.Database()
	if err != nil {
		return nil
	}
	dir, err := cache.Dir()
	if err != nil {
		return nil
	}
	return cache.NewStore(dir, "layouts", s.Profile.Host, db)
}

// withLayout runs fn against layout. When the server reports the layout is
// missing, the name is fuzzy-matched against the database's layouts and fn
// is retried once with the match. Cached layout names are tried first; a
// cached match the server also rejects drops the cache entry.
func withLayout(ctx context.Context, s *session, layout string, fn func(layout string) error) error {
	err := fn(layout)
	if !fmrest.IsLayoutMissing(err) {
		return err
	}

	if store := layoutCache(s); store != nil {
		var names []string
		if store.Get(&names) {
			if match, matchErr := resolve.FuzzyMatch(layout, names); matchErr == nil && match != layout {
				slog.Info("resolved layout", "input", layout, "layout", match, "source", "cache")
				retryErr := fn(match)
				if !fmrest.IsLayoutMissing(retryErr) {
					return retryErr
				}
			}
			store.Clear()
		}
	}

	list, listErr := fetchLayouts(ctx, s)
	if listErr != nil {
		return err
	}
	match, matchErr := resolve.FuzzyMatch(layout, list.Names())
	if matchErr != nil {
		return fmt.Errorf("layout %q: %w", layout, matchErr)
	}
	if match == layout {
		return err
	}
	slog.Info("resolved layout", "input", layout, "layout", match)
	return fn(match)
}

func newLayoutMetadataCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "layout-metadata <layout>",
		Aliases: []string{"fields"},
		Short:   "Show the fields and portals of a layout",
		Example: "fmrest layout-metadata Contacts",
		Args:    cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer closeSession(s)

			ctx := cmdContext(cmd)
			db, err := s.Database()
			if err != nil {
				return err
			}

			var meta fmrest.LayoutMetadataResponse
			err = withLayout(ctx, s, args[0], func(layout string) error {
				req, err := s.Request(ctx, fmrest.MethodGet, fmrest.LayoutMetadata(db, layout), nil)
				if err != nil {
					return err
				}
				env, err := call[fmrest.LayoutMetadataResponse](ctx, s, req)
				if err != nil {
					return err
				}
				if env.Response != nil {
					meta = *env.Response
				}
				return nil
			})
			if err != nil {
				return err
			}

			f := newFormatter(cmd)
			if ok, err := f.Output(meta); ok {
				return err
			}
			f.StartTable("FIELD", "TYPE", "RESULT", "REPS")
			for _, field := range meta.FieldMetaData {
				f.Row(field.Name, field.Type, field.Result, strconv.Itoa(field.MaxRepeat))
			}
			for _, portal := range sortedKeys(meta.PortalMetaData) {
				for _, field := range meta.PortalMetaData[portal] {
					f.Row(portal+"::"+strings.TrimPrefix(field.Name, portal+"::"), field.Type, field.Result, strconv.Itoa(field.MaxRepeat))
				}
			}
			return f.EndTable()
		}),
	}
}

func newScriptsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "scripts",
		Aliases: []string{"sc"},
		Short:   "List or run scripts",
		Example: "fmrest scripts",
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			return runScriptsList(cmd)
		}),
	}

	cmd.AddCommand(newScriptsListCmd())
	cmd.AddCommand(newScriptsRunCmd())

	return cmd
}

func newScriptsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the scripts of the database",
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			return runScriptsList(cmd)
		}),
	}
}

func runScriptsList(cmd *cobra.Command) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer closeSession(s)

	ctx := cmdContext(cmd)
	db, err := s.Database()
	if err != nil {
		return err
	}
	req, err := s.Request(ctx, fmrest.MethodGet, fmrest.Scripts(db), nil)
	if err != nil {
		return err
	}
	env, err := call[fmrest.ScriptList](ctx, s, req)
	if err != nil {
		return err
	}
	list := fmrest.ScriptList{}
	if env.Response != nil {
		list = *env.Response
	}

	f := newFormatter(cmd)
	if ok, err := f.Output(list); ok {
		return err
	}
	if len(list.Scripts) == 0 {
		f.Empty("No scripts found.")
		return nil
	}
	f.StartTable("SCRIPT")
	var walk func(entries []fmrest.ScriptEntry, prefix string)
	walk = func(entries []fmrest.ScriptEntry, prefix string) {
		for _, e := range entries {
			if e.IsFolder {
				walk(e.FolderScript, prefix+e.Name+"/")
				continue
			}
			f.Row(prefix + e.Name)
		}
	}
	walk(list.Scripts, "")
	return f.EndTable()
}

func newScriptsRunCmd() *cobra.Command {
	var param string

	cmd := &cobra.Command{
		Use:     "run <layout> <script>",
		Short:   "Run a script in the context of a layout",
		Example: `fmrest scripts run Contacts "Send Reminders" --param 42`,
		Args:    cobra.ExactArgs(2),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer closeSession(s)

			ctx := cmdContext(cmd)
			db, err := s.Database()
			if err != nil {
				return err
			}
			var query []fmrest.QueryItem
			if flagOrAliasChanged(cmd, "param") {
				query = fmrest.Query("script.param", param)
			}

			var result fmrest.ScriptResult
			err = withLayout(ctx, s, args[0], func(layout string) error {
				req, err := s.Request(ctx, fmrest.MethodGet, fmrest.RunScript(db, layout, args[1]), query)
				if err != nil {
					return err
				}
				env, err := call[fmrest.ScriptResult](ctx, s, req)
				if err != nil {
					return err
				}
				if env.Response != nil {
					result = *env.Response
				}
				return nil
			})
			if err != nil {
				return err
			}

			if isStructured(cmd) {
				return printStructured(cmd, result)
			}
			if result.ScriptError != "" && result.ScriptError != "0" {
				return fmt.Errorf("script %q failed with error %s", args[1], result.ScriptError)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), result.ScriptResult)
			return nil
		}),
	}

	cmd.Flags().StringVar(&param, "param", "", "Script parameter")
	flagAlias(cmd.Flags(), "param", "pa")

	return cmd
}

func newGlobalsCmd() *cobra.Command {
	var fields []string

	cmd := &cobra.Command{
		Use:     "globals",
		Aliases: []string{"gl"},
		Short:   "Set global field values for the session",
		Example: `fmrest globals -f "Settings::gYear=2026"`,
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			if len(fields) == 0 {
				return fmt.Errorf("at least one --field is required")
			}
			globals := make(map[string]string, len(fields))
			for _, field := range fields {
				key, value, err := parseField(field)
				if err != nil {
					return err
				}
				globals[key] = value
			}

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer closeSession(s)

			ctx := cmdContext(cmd)
			db, err := s.Database()
			if err != nil {
				return err
			}
			req, err := s.JSONRequest(ctx, fmrest.MethodPatch, fmrest.Globals(db), nil, fmrest.GlobalsRequest{GlobalFields: globals})
			if err != nil {
				return err
			}
			if ok, err := maybeDryRun(cmd, "set", fmt.Sprintf("%d global field(s)", len(globals)), req); ok {
				return err
			}
			if _, err := call[fmrest.EmptyResponse](ctx, s, req); err != nil {
				return err
			}
			if isStructured(cmd) {
				return printStructured(cmd, globals)
			}
			_, _ = fmt.Fprintf(iocontext.GetIO(ctx).Out, "Set %d global field(s).\n", len(globals))
			return nil
		}),
	}

	cmd.Flags().StringArrayVarP(&fields, "field", "f", nil, "Global field as name=value (repeatable)")

	return cmd
}
