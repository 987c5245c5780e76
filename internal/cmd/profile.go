package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fmrest/fmrest-cli/internal/config"
	"github.com/fmrest/fmrest-cli/internal/fmrest"
	"github.com/fmrest/fmrest-cli/internal/iocontext"
	"github.com/fmrest/fmrest-cli/internal/tokenstore"
	"github.com/fmrest/fmrest-cli/internal/urlparse"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profile",
		Aliases: []string{"profiles", "pr"},
		Short:   "Manage FileMaker server profiles",
	}

	cmd.AddCommand(newProfileSetCmd())
	cmd.AddCommand(newProfileShowCmd())
	cmd.AddCommand(newProfileListCmd())
	cmd.AddCommand(newProfileUseCmd())
	cmd.AddCommand(newProfileDeleteCmd())

	return cmd
}

func newProfileSetCmd() *cobra.Command {
	var p config.Profile
	var dataURL string

	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Create or update a profile and make it current",
		Long: `Create or update a profile in the OS keyring and make it the current profile.

Only the flags given are changed on an existing profile.`,
		Example: strings.TrimSpace(`
  # Connect to a database
  fmrest profile set work --host fms.example.com --database Sales

  # Or paste any Data API URL of the database
  fmrest profile set work --url https://fms.example.com/fmi/data/vLatest/databases/Sales

  # Pin a session token read from stdin
  echo "$TOKEN" | fmrest profile set work --token -

  # Share renewed tokens between machines through Redis
  fmrest profile set work --token-store redis --redis-url redis://cache:6379/0
`),
		Args: cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return fmt.Errorf("profile name is required")
			}

			existing, err := config.LoadProfile(name)
			if err != nil && !errors.Is(err, config.ErrNotConfigured) {
				return err
			}

			if flagOrAliasChanged(cmd, "url") {
				u, err := urlparse.Parse(dataURL)
				if err != nil {
					return err
				}
				existing.Host = config.NormalizeHost(u.Host)
				existing.Scheme = u.Scheme
				existing.RootPath = u.RootPath
				existing.Version = u.Version
				existing.Database = u.Database
			}

			set := func(flag string, dst *string, value string) {
				if flagOrAliasChanged(cmd, flag) {
					*dst = strings.TrimSpace(value)
				}
			}
			set("host", &existing.Host, config.NormalizeHost(p.Host))
			set("database", &existing.Database, p.Database)
			set("version", &existing.Version, p.Version)
			set("scheme", &existing.Scheme, p.Scheme)
			set("root-path", &existing.RootPath, p.RootPath)
			set("token-store", &existing.TokenStore, p.TokenStore)
			set("redis-url", &existing.RedisURL, p.RedisURL)
			if flagOrAliasChanged(cmd, "token") {
				data, err := iocontext.GetIO(cmd.Context()).ReadSource(p.Token)
				if err != nil {
					return err
				}
				existing.Token = strings.TrimSpace(string(data))
			}

			if existing.Host == "" {
				return fmt.Errorf("--host is required for a new profile")
			}
			if existing.Version != "" && !fmrest.ValidVersion(existing.Version) {
				return fmt.Errorf("invalid --version %q: want vLatest or vN", existing.Version)
			}
			if existing.TokenStore != "" {
				if _, err := tokenstore.ParseKind(existing.TokenStore); err != nil {
					return err
				}
			}

			if err := config.SaveProfile(name, existing); err != nil {
				return err
			}

			if isStructured(cmd) {
				return printStructured(cmd, profilePayload(name, existing))
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Profile %s saved (%s/%s)\n", name, existing.Host, existing.Database)
			return nil
		}),
	}

	cmd.Flags().StringVar(&dataURL, "url", "", "Data API URL to take host, scheme, root path, version and database from")
	cmd.Flags().StringVar(&p.Host, "host", "", "FileMaker Server host, optionally with port")
	cmd.Flags().StringVarP(&p.Database, "database", "d", "", "Hosted database name")
	cmd.Flags().StringVar(&p.Version, "version", "", "Data API version (vLatest, v1, v2)")
	cmd.Flags().StringVar(&p.Scheme, "scheme", "", "URL scheme (default https)")
	cmd.Flags().StringVar(&p.RootPath, "root-path", "", "API root path (default /fmi/data/)")
	cmd.Flags().StringVar(&p.Token, "token", "", "Session token (- for stdin, @file)")
	cmd.Flags().StringVar(&p.TokenStore, "token-store", "", "Where renewed tokens are kept: keyring|redis|none")
	cmd.Flags().StringVar(&p.RedisURL, "redis-url", "", "Redis URL for the redis token store")
	flagAlias(cmd.Flags(), "database", "db")
	flagAlias(cmd.Flags(), "root-path", "rp")

	return cmd
}

func newProfileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "show [name]",
		Short:   "Show profile details (defaults to the current profile)",
		Example: "fmrest profile show work",
		Args:    cobra.MaximumNArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			} else {
				current, err := config.CurrentProfile()
				if err != nil {
					return err
				}
				name = current
			}

			p, err := config.LoadProfile(name)
			if err != nil {
				return err
			}

			if isStructured(cmd) {
				return printStructured(cmd, profilePayload(name, p))
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Profile: %s\n", name)
			_, _ = fmt.Fprintf(out, "  Host: %s\n", p.Host)
			_, _ = fmt.Fprintf(out, "  Database: %s\n", valueOrDash(p.Database))
			_, _ = fmt.Fprintf(out, "  Version: %s\n", valueOr(p.Version, fmrest.DefaultVersion))
			_, _ = fmt.Fprintf(out, "  Scheme: %s\n", valueOr(p.Scheme, fmrest.DefaultScheme))
			_, _ = fmt.Fprintf(out, "  Root path: %s\n", valueOr(p.RootPath, fmrest.DefaultRootPath))
			_, _ = fmt.Fprintf(out, "  Token: %s\n", valueOrDash(maskToken(p.Token)))
			_, _ = fmt.Fprintf(out, "  Token store: %s\n", valueOr(p.TokenStore, tokenstore.KindKeyring))
			if p.RedisURL != "" {
				_, _ = fmt.Fprintf(out, "  Redis URL: %s\n", p.RedisURL)
			}
			return nil
		}),
	}
}

func newProfileListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List configured profiles",
		Example: "fmrest profile list",
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			profiles, err := config.ListProfiles()
			if err != nil {
				return err
			}
			current, _ := config.CurrentProfile()

			if isStructured(cmd) {
				return printStructured(cmd, map[string]any{
					"current":  current,
					"profiles": profiles,
				})
			}

			f := newFormatter(cmd)
			if len(profiles) == 0 {
				f.Empty("No profiles configured. Run 'fmrest profile set' to add one.")
				return nil
			}
			f.StartTable("CURRENT", "PROFILE", "HOST", "DATABASE")
			for _, name := range profiles {
				marker := ""
				if name == current {
					marker = "*"
				}
				host, db := "-", "-"
				if p, err := config.LoadProfile(name); err == nil {
					host, db = valueOrDash(p.Host), valueOrDash(p.Database)
				}
				f.Row(marker, name, host, db)
			}
			return f.EndTable()
		}),
	}
}

func newProfileUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "use <name>",
		Short:   "Switch the current profile",
		Example: "fmrest profile use staging",
		Args:    cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			name := args[0]
			p, err := config.LoadProfile(name)
			if err != nil {
				return fmt.Errorf("profile %q not found: %w", name, err)
			}
			if err := config.SetCurrentProfile(name); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Current profile: %s (%s/%s)\n", name, p.Host, p.Database)
			return nil
		}),
	}
}

func newProfileDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a profile",
		Example: "fmrest profile delete staging",
		Args:    cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if _, err := config.LoadProfile(name); err != nil {
				return fmt.Errorf("profile %q not found: %w", name, err)
			}
			if err := config.DeleteProfile(name); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Profile %s removed.\n", name)
			return nil
		}),
	}
}

func profilePayload(name string, p config.Profile) map[string]any {
	return map[string]any{
		"profile":     name,
		"host":        p.Host,
		"database":    p.Database,
		"version":     valueOr(p.Version, fmrest.DefaultVersion),
		"scheme":      valueOr(p.Scheme, fmrest.DefaultScheme),
		"root_path":   valueOr(p.RootPath, fmrest.DefaultRootPath),
		"token":       maskToken(p.Token),
		"token_store": valueOr(p.TokenStore, tokenstore.KindKeyring),
		"redis_url":   p.RedisURL,
	}
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func valueOrDash(v string) string {
	return valueOr(v, "-")
}
