package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fmrest/fmrest-cli/internal/fmrest"
	"github.com/fmrest/fmrest-cli/internal/iocontext"
	"github.com/fmrest/fmrest-cli/internal/tokenstore"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "token",
		Aliases: []string{"tok"},
		Short:   "Inspect or store the Data API session token",
		Long: `Inspect or store the Data API session token.

Every successful call that returns a renewed token stores it in the token
store (keyring, redis, or none), keyed by host and database. The stored token
takes precedence over the one pinned to the profile.`,
	}

	cmd.AddCommand(newTokenShowCmd())
	cmd.AddCommand(newTokenSetCmd())
	cmd.AddCommand(newTokenClearCmd())

	return cmd
}

func newTokenShowCmd() *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:     "show",
		Short:   "Show the token the next call will present",
		Example: "fmrest token show --reveal",
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer closeSession(s)

			ctx := cmdContext(cmd)
			source := "store"
			token, err := s.Store.Get(ctx, s.key)
			if errors.Is(err, tokenstore.ErrNotFound) {
				token, source = s.Profile.Token, "profile"
			} else if err != nil {
				return err
			}
			if token == "" {
				source = "none"
			}

			display := maskToken(token)
			if reveal {
				display = token
			}

			if isStructured(cmd) {
				return printStructured(cmd, map[string]any{
					"profile": s.Name,
					"key":     s.key,
					"source":  source,
					"token":   display,
				})
			}
			if token == "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "No token for %s.\n", s.key)
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, from %s)\n", display, s.key, source)
			return nil
		}),
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print the token unmasked")

	return cmd
}

func newTokenSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <token>",
		Short: "Store a session token (- reads stdin, @path reads a file)",
		Example: strings.TrimSpace(`
  fmrest token set 3f2a...
  echo "$TOKEN" | fmrest token set -
`),
		Args: cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			data, err := iocontext.GetIO(cmd.Context()).ReadSource(args[0])
			if err != nil {
				return err
			}
			token := strings.TrimSpace(string(data))
			if token == "" {
				return fmt.Errorf("token is required")
			}

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer closeSession(s)

			if _, ok := s.Store.(tokenstore.Nop); ok {
				return fmt.Errorf("token store is none; use 'fmrest profile set --token' to pin a token")
			}
			if err := s.Store.Set(cmdContext(cmd), s.key, token); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Token stored for %s.\n", s.key)
			return nil
		}),
	}
}

func newTokenClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "clear",
		Short:   "Forget the stored session token",
		Example: "fmrest token clear",
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer closeSession(s)

			if err := s.Store.Clear(cmdContext(cmd), s.key); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Token cleared for %s.\n", s.key)
			return nil
		}),
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Close the server session and forget its token",
		Long: `Close the Data API session on the server (DELETE /databases/{db}/sessions/{token})
and clear the stored token.`,
		Example: "fmrest logout",
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
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
			token, err := s.Token(ctx)
			if err != nil {
				return err
			}
			if token == "" {
				return &fmrest.Error{Kind: fmrest.KindAuthType, Detail: "no session token to close"}
			}

			// The session endpoint carries the token in its path, not a header.
			req := fmrest.NewRequest(fmrest.StaticCredentials{}, s.Profile.Host, s.Config, fmrest.MethodDelete, fmrest.Session(db, token), nil)
			if _, err := fmrest.Run[fmrest.EmptyResponse](ctx, s.Agent, req); err != nil && !fmrest.IsSessionExpired(err) {
				return err
			}
			if err := s.Store.Clear(ctx, s.key); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		}),
	}
}
