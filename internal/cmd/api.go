package cmd

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fmrest/fmrest-cli/internal/fmrest"
	"github.com/fmrest/fmrest-cli/internal/iocontext"
)

func newAPICmd() *cobra.Command {
	var method string
	var fields []string
	var rawFields []string
	var body string
	var params []string
	var noAuth bool

	cmd := &cobra.Command{
		Use:     "api <path>",
		Aliases: []string{"ap"},
		Short:   "Make raw requests to any Data API endpoint",
		Long: `Make raw requests to any Data API endpoint.

The path is relative to the versioned API root (/fmi/data/{version}).
"{db}" in the path is replaced with the profile's database.

The response is printed as the decoded envelope: {"response":...,"messages":[...]}.`,
		Example: strings.TrimSpace(`
  # GET request (default)
  fmrest api /productInfo --no-auth

  # Records with query parameters
  fmrest api '/databases/{db}/layouts/Contacts/records' -q _limit=5 -q _offset=10

  # PATCH with fields
  fmrest api '/databases/{db}/layouts/Contacts/records/12' -X PATCH -f fieldData.Email=ada@example.com

  # Body from stdin
  echo '{"query":[{"City":"London"}]}' | fmrest api '/databases/{db}/layouts/Contacts/_find' -X POST -d -

  # Filter the envelope
  fmrest api '/databases/{db}/scripts' --jq '.response.scripts[].name'
`),
		Args: cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			m, err := fmrest.ParseMethod(method)
			if err != nil {
				return err
			}
			query := make([]fmrest.QueryItem, 0, len(params))
			for _, p := range params {
				key, value, err := parseField(p)
				if err != nil {
					return fmt.Errorf("invalid --query-param: %w", err)
				}
				query = append(query, fmrest.QueryItem{Name: key, Value: value})
			}
			payload, err := buildRequestBody(iocontext.GetIO(cmd.Context()), fields, rawFields, body)
			if err != nil {
				return err
			}

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer closeSession(s)

			ctx := cmdContext(cmd)
			path := args[0]
			if strings.Contains(path, "{db}") {
				db, err := s.Database()
				if err != nil {
					return err
				}
				path = strings.ReplaceAll(path, "{db}", url.PathEscape(db))
			}

			var creds fmrest.Credentials = fmrest.StaticCredentials{}
			if !noAuth {
				if creds, err = s.Credentials(ctx); err != nil {
					return err
				}
			}

			var req *fmrest.Request
			if payload != nil {
				req, err = fmrest.NewJSONRequest(creds, s.Profile.Host, s.Config, m, fmrest.Path(path), query, payload)
				if err != nil {
					return err
				}
			} else {
				req = fmrest.NewRequest(creds, s.Profile.Host, s.Config, m, fmrest.Path(path), query)
			}

			if m != fmrest.MethodGet {
				if ok, err := maybeDryRun(cmd, "send", path, req); ok {
					return err
				}
			}

			env, err := call[json.RawMessage](ctx, s, req)
			if err != nil {
				return err
			}
			return printStructured(cmd, env)
		}),
	}

	cmd.Flags().StringVarP(&method, "method", "X", "GET", "HTTP method (GET, POST, PUT, PATCH, DELETE)")
	cmd.Flags().StringArrayVarP(&fields, "field", "f", nil, "Body field as key=value (string); dots nest objects")
	cmd.Flags().StringArrayVarP(&rawFields, "raw-field", "F", nil, "Body field as key=value (JSON value); dots nest objects")
	cmd.Flags().StringVarP(&body, "data", "d", "", "Request body as JSON (- for stdin, @file)")
	cmd.Flags().StringArrayVarP(&params, "query-param", "q", nil, "Query parameter as key=value (repeatable)")
	cmd.Flags().BoolVar(&noAuth, "no-auth", false, "Send the request without a session token")
	flagAlias(cmd.Flags(), "no-auth", "na")

	return cmd
}

// buildRequestBody constructs the request body from -d and/or fields.
// Fields are applied after -d and win. A nil result means no body.
func buildRequestBody(streams *iocontext.IO, fields, rawFields []string, data string) (any, error) {
	var body map[string]any
	if data != "" {
		raw, err := streams.ReadSource(data)
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 && len(rawFields) == 0 {
			if !json.Valid(raw) {
				return nil, fmt.Errorf("invalid --data JSON")
			}
			return json.RawMessage(raw), nil
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("--data must be a JSON object when combined with fields: %w", err)
		}
	}

	set := func(key string, value any) {
		if body == nil {
			body = make(map[string]any)
		}
		setNested(body, strings.Split(key, "."), value)
	}
	for _, field := range fields {
		key, value, err := parseField(field)
		if err != nil {
			return nil, err
		}
		set(key, value)
	}
	for _, field := range rawFields {
		key, value, err := parseRawField(field)
		if err != nil {
			return nil, err
		}
		set(key, value)
	}

	if body == nil {
		return nil, nil
	}
	return body, nil
}

// setNested assigns value at path, creating intermediate objects.
func setNested(m map[string]any, path []string, value any) {
	for len(path) > 1 {
		next, ok := m[path[0]].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[path[0]] = next
		}
		m, path = next, path[1:]
	}
	m[path[0]] = value
}
