package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fmrest/fmrest-cli/internal/fmrest"
	"github.com/fmrest/fmrest-cli/internal/iocontext"
)

func newRecordsCmd() *cobra.Command {
	var layout string

	cmd := &cobra.Command{
		Use:     "records",
		Aliases: []string{"record", "rec"},
		Short:   "Read and write records on a layout",
		Long: `Read and write records on a layout.

A layout name the server does not know is fuzzy-matched against the
database's layouts, so "--layout contcts" finds "Contacts".`,
	}

	cmd.PersistentFlags().StringVarP(&layout, "layout", "l", "", "Layout name (required)")
	_ = cmd.MarkPersistentFlagRequired("layout")
	flagAlias(cmd.PersistentFlags(), "layout", "ly")

	cmd.AddCommand(newRecordsListCmd(&layout))
	cmd.AddCommand(newRecordsGetCmd(&layout))
	cmd.AddCommand(newRecordsCreateCmd(&layout))
	cmd.AddCommand(newRecordsEditCmd(&layout))
	cmd.AddCommand(newRecordsDeleteCmd(&layout))
	cmd.AddCommand(newRecordsFindCmd(&layout))

	return cmd
}

// pageFlags are the range and order options shared by list and find.
type pageFlags struct {
	limit  int
	offset int
	sort   []string
}

func (p *pageFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&p.limit, "limit", 0, "Maximum number of records (server default 100)")
	cmd.Flags().IntVar(&p.offset, "offset", 0, "First record to return (1-based)")
	cmd.Flags().StringArrayVar(&p.sort, "sort", nil, "Sort by field[:ascend|descend] (repeatable)")
	flagAlias(cmd.Flags(), "limit", "lim")
	flagAlias(cmd.Flags(), "offset", "off")
}

func (p *pageFlags) validate() error {
	if p.limit < 0 {
		return fmt.Errorf("--limit must be >= 0")
	}
	if p.offset < 0 {
		return fmt.Errorf("--offset must be >= 0")
	}
	return nil
}

func (p *pageFlags) sortRules() ([]fmrest.SortRule, error) {
	var rules []fmrest.SortRule
	for _, raw := range p.sort {
		field, order, _ := strings.Cut(raw, ":")
		field = strings.TrimSpace(field)
		if field == "" {
			return nil, fmt.Errorf("invalid --sort %q: field name is required", raw)
		}
		rule := fmrest.SortRule{FieldName: field}
		switch strings.ToLower(strings.TrimSpace(order)) {
		case "":
		case "asc", "ascend":
			rule.SortOrder = "ascend"
		case "desc", "descend":
			rule.SortOrder = "descend"
		default:
			rule.SortOrder = order // value list name
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// query renders the options as the _offset, _limit and _sort parameters of a
// record range read.
func (p *pageFlags) query() ([]fmrest.QueryItem, error) {
	var items []fmrest.QueryItem
	if p.offset > 0 {
		items = append(items, fmrest.QueryItem{Name: "_offset", Value: strconv.Itoa(p.offset)})
	}
	if p.limit > 0 {
		items = append(items, fmrest.QueryItem{Name: "_limit", Value: strconv.Itoa(p.limit)})
	}
	rules, err := p.sortRules()
	if err != nil {
		return nil, err
	}
	if len(rules) > 0 {
		data, err := json.Marshal(rules)
		if err != nil {
			return nil, err
		}
		items = append(items, fmrest.QueryItem{Name: "_sort", Value: string(data)})
	}
	return items, nil
}

func newRecordsListCmd(layout *string) *cobra.Command {
	var page pageFlags

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List a range of records",
		Example: strings.TrimSpace(`
  fmrest records list -l Contacts --limit 20 --sort LastName
  fmrest records list -l Contacts --json --jq '.[] | .fieldData.Email'
`),
		Args: cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			if err := page.validate(); err != nil {
				return err
			}
			query, err := page.query()
			if err != nil {
				return err
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

			var records fmrest.RecordsResponse
			err = withLayout(ctx, s, *layout, func(layout string) error {
				req, err := s.Request(ctx, fmrest.MethodGet, fmrest.Records(db, layout), query)
				if err != nil {
					return err
				}
				env, err := call[fmrest.RecordsResponse](ctx, s, req)
				if err != nil {
					return err
				}
				if env.Response != nil {
					records = *env.Response
				}
				return nil
			})
			if err != nil {
				return err
			}
			return printRecords(cmd, records)
		}),
	}

	page.register(cmd)

	return cmd
}

func newRecordsGetCmd(layout *string) *cobra.Command {
	var concurrency int
	var progress bool
	var perSecond float64

	cmd := &cobra.Command{
		Use:   "get <id>...",
		Short: "Fetch records by ID",
		Long: `Fetch one or more records by record ID. IDs may be given as separate
arguments or comma-separated; they are fetched concurrently.`,
		Example: "fmrest records get -l Contacts 12 15,18",
		Args:    cobra.MinimumNArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			ids, err := ParseIntList(args)
			if err != nil {
				return err
			}
			if concurrency < 1 {
				return fmt.Errorf("--concurrency must be >= 1")
			}
			if perSecond < 0 {
				return fmt.Errorf("--rate must be >= 0")
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
			// Resolve the layout once up front so workers don't each retry.
			// The first record fetched here is reused by the workers.
			resolved := *layout
			var first *fmrest.RecordData
			err = withLayout(ctx, s, *layout, func(l string) error {
				req, err := s.Request(ctx, fmrest.MethodGet, fmrest.Record(db, l, ids[0]), nil)
				if err != nil {
					return err
				}
				env, err := call[fmrest.RecordsResponse](ctx, s, req)
				if err == nil || !fmrest.IsLayoutMissing(err) {
					resolved = l
					if err == nil && env.Response != nil && len(env.Response.Data) > 0 {
						first = &env.Response.Data[0]
					}
					return nil
				}
				return err
			})
			if err != nil {
				return err
			}

			errOut := iocontext.GetIO(ctx).ErrOut
			fetch := rateLimited(perSecond, func(ctx context.Context, id int) (fmrest.RecordData, error) {
				req, err := s.Request(ctx, fmrest.MethodGet, fmrest.Record(db, resolved, id), nil)
				if err != nil {
					return fmrest.RecordData{}, err
				}
				env, err := callAsync[fmrest.RecordsResponse](ctx, s, req)
				if err != nil {
					return fmrest.RecordData{}, err
				}
				if env.Response == nil || len(env.Response.Data) == 0 {
					return fmrest.RecordData{}, fmt.Errorf("record %d: empty response", id)
				}
				return env.Response.Data[0], nil
			})
			results := runBulkOperation(ctx, ids, int64(concurrency), progress, errOut,
				func(ctx context.Context, id int) (fmrest.RecordData, error) {
					if first != nil && id == ids[0] {
						return *first, nil
					}
					return fetch(ctx, id)
				})

			var found fmrest.RecordsResponse
			found.DataInfo.Layout = resolved
			found.DataInfo.Database = db
			var firstErr error
			for _, r := range results {
				switch {
				case r.OK():
					found.Data = append(found.Data, r.Data)
				case r.Skipped:
					_, _ = fmt.Fprintf(errOut, "record %d: skipped\n", r.ID)
				default:
					if firstErr == nil {
						firstErr = r.Error
					}
					_, _ = fmt.Fprintf(errOut, "record %d: %v\n", r.ID, r.Error)
				}
			}
			found.DataInfo.ReturnedCount = len(found.Data)
			found.DataInfo.FoundCount = len(found.Data)

			if err := printRecords(cmd, found); err != nil {
				return err
			}
			success, failure := countResults(results)
			if failure > 0 {
				if firstErr == nil {
					firstErr = ctx.Err()
				}
				return fmt.Errorf("%d of %d records failed: %w", failure, success+failure, firstErr)
			}
			return nil
		}),
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", DefaultConcurrency, "Maximum concurrent requests")
	cmd.Flags().BoolVar(&progress, "progress", false, "Show progress on stderr")
	cmd.Flags().Float64Var(&perSecond, "rate", 0, "Maximum requests per second (0 = unlimited)")
	flagAlias(cmd.Flags(), "concurrency", "cc")

	return cmd
}

// recordInput collects field values from -f, -F and -d.
type recordInput struct {
	fields    []string
	rawFields []string
	data      string
}

func (in *recordInput) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&in.fields, "field", "f", nil, "Field as name=value (string, repeatable)")
	cmd.Flags().StringArrayVarP(&in.rawFields, "raw-field", "F", nil, "Field as name=value (JSON value, repeatable)")
	cmd.Flags().StringVarP(&in.data, "data", "d", "", `Request body as JSON {"fieldData":{...}} (- for stdin, @file)`)
}

// request builds the record payload. Values from -f/-F override -d.
func (in *recordInput) request(cmd *cobra.Command) (fmrest.RecordRequest, error) {
	var req fmrest.RecordRequest
	if in.data != "" {
		raw, err := iocontext.GetIO(cmd.Context()).ReadSource(in.data)
		if err != nil {
			return req, err
		}
		if err := json.Unmarshal(raw, &req); err != nil {
			return req, fmt.Errorf("invalid --data JSON: %w", err)
		}
	}
	if req.FieldData == nil {
		req.FieldData = make(map[string]any)
	}
	for _, field := range in.fields {
		key, value, err := parseField(field)
		if err != nil {
			return req, err
		}
		req.FieldData[key] = value
	}
	for _, field := range in.rawFields {
		key, value, err := parseRawField(field)
		if err != nil {
			return req, err
		}
		req.FieldData[key] = value
	}
	return req, nil
}

func newRecordsCreateCmd(layout *string) *cobra.Command {
	var input recordInput

	cmd := &cobra.Command{
		Use:     "create",
		Aliases: []string{"new"},
		Short:   "Create a record",
		Example: strings.TrimSpace(`
  fmrest records create -l Contacts -f FirstName=Ada -f LastName=Lovelace
  fmrest records create -l Contacts -d @contact.json
`),
		Args: cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			body, err := input.request(cmd)
			if err != nil {
				return err
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
			var created fmrest.RecordIDResponse
			previewed := false
			err = withLayout(ctx, s, *layout, func(layout string) error {
				req, err := s.JSONRequest(ctx, fmrest.MethodPost, fmrest.Records(db, layout), nil, body)
				if err != nil {
					return err
				}
				if ok, err := maybeDryRun(cmd, "create", fmt.Sprintf("record in layout %q", layout), req); ok {
					previewed = true
					return err
				}
				env, err := call[fmrest.RecordIDResponse](ctx, s, req)
				if err != nil {
					return err
				}
				if env.Response != nil {
					created = *env.Response
				}
				return nil
			})
			if err != nil || previewed {
				return err
			}
			if isStructured(cmd) {
				return printStructured(cmd, created)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created record %s (modId %s)\n", created.RecordID, created.ModID)
			return nil
		}),
	}

	input.register(cmd)

	return cmd
}

func newRecordsEditCmd(layout *string) *cobra.Command {
	var input recordInput
	var modID string

	cmd := &cobra.Command{
		Use:     "edit <id>",
		Aliases: []string{"update"},
		Short:   "Edit a record",
		Example: "fmrest records edit -l Contacts 12 -f Email=ada@example.com --mod-id 3",
		Args:    cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			ids, err := ParseIntList(args)
			if err != nil {
				return err
			}
			body, err := input.request(cmd)
			if err != nil {
				return err
			}
			if len(body.FieldData) == 0 && len(body.PortalData) == 0 {
				return fmt.Errorf("at least one --field, --raw-field or --data value is required")
			}
			if modID != "" {
				body.ModID = modID
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
			var edited fmrest.RecordIDResponse
			previewed := false
			err = withLayout(ctx, s, *layout, func(layout string) error {
				req, err := s.JSONRequest(ctx, fmrest.MethodPatch, fmrest.Record(db, layout, ids[0]), nil, body)
				if err != nil {
					return err
				}
				if ok, err := maybeDryRun(cmd, "edit", fmt.Sprintf("record %d in layout %q", ids[0], layout), req); ok {
					previewed = true
					return err
				}
				env, err := call[fmrest.RecordIDResponse](ctx, s, req)
				if err != nil {
					return err
				}
				if env.Response != nil {
					edited = *env.Response
				}
				return nil
			})
			if err != nil || previewed {
				return err
			}
			if isStructured(cmd) {
				return printStructured(cmd, edited)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Edited record %d (modId %s)\n", ids[0], edited.ModID)
			return nil
		}),
	}

	input.register(cmd)
	cmd.Flags().StringVar(&modID, "mod-id", "", "Fail unless the record is at this modification ID")
	flagAlias(cmd.Flags(), "mod-id", "mid")

	return cmd
}

func newRecordsDeleteCmd(layout *string) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a record",
		Example: "fmrest records delete -l Contacts 12",
		Args:    cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			ids, err := ParseIntList(args)
			if err != nil {
				return err
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
			previewed := false
			err = withLayout(ctx, s, *layout, func(layout string) error {
				req, err := s.Request(ctx, fmrest.MethodDelete, fmrest.Record(db, layout, ids[0]), nil)
				if err != nil {
					return err
				}
				if ok, err := maybeDryRun(cmd, "delete", fmt.Sprintf("record %d in layout %q", ids[0], layout), req, "Deleted records cannot be recovered"); ok {
					previewed = true
					return err
				}
				_, err = call[fmrest.EmptyResponse](ctx, s, req)
				return err
			})
			if err != nil || previewed {
				return err
			}
			if isStructured(cmd) {
				return printStructured(cmd, map[string]any{"deleted": ids[0]})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted record %d\n", ids[0])
			return nil
		}),
	}
}

func newRecordsFindCmd(layout *string) *cobra.Command {
	var page pageFlags
	var where []string
	var queryJSON string

	cmd := &cobra.Command{
		Use:     "find",
		Aliases: []string{"search"},
		Short:   "Find records matching criteria",
		Long: `Find records matching criteria.

Each --where adds a field=value criterion to a single find request (AND).
For OR requests or omit requests pass the full query array with --query.
A find that matches nothing prints an empty result instead of failing.`,
		Example: strings.TrimSpace(`
  fmrest records find -l Contacts -w LastName=Lovelace -w City=London
  fmrest records find -l Contacts --query '[{"City":"London"},{"City":"Paris"}]'
`),
		Args: cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			if err := page.validate(); err != nil {
				return err
			}
			body := fmrest.FindRequest{Offset: page.offset, Limit: page.limit}
			rules, err := page.sortRules()
			if err != nil {
				return err
			}
			body.Sort = rules

			if queryJSON != "" {
				raw, err := iocontext.GetIO(cmd.Context()).ReadSource(queryJSON)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(raw, &body.Query); err != nil {
					return fmt.Errorf("invalid --query JSON (want an array of objects): %w", err)
				}
			}
			if len(where) > 0 {
				criteria := make(map[string]string, len(where))
				for _, w := range where {
					key, value, err := parseField(w)
					if err != nil {
						return err
					}
					criteria[key] = value
				}
				body.Query = append(body.Query, criteria)
			}
			if len(body.Query) == 0 {
				return fmt.Errorf("at least one --where or --query is required")
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
			records := fmrest.RecordsResponse{Data: []fmrest.RecordData{}}
			err = withLayout(ctx, s, *layout, func(layout string) error {
				req, err := s.JSONRequest(ctx, fmrest.MethodPost, fmrest.Find(db, layout), nil, body)
				if err != nil {
					return err
				}
				env, err := call[fmrest.RecordsResponse](ctx, s, req)
				if fmrest.IsNoRecordsMatch(err) {
					records.DataInfo.Database, records.DataInfo.Layout = db, layout
					return nil
				}
				if err != nil {
					return err
				}
				if env.Response != nil {
					records = *env.Response
				}
				return nil
			})
			if err != nil {
				return err
			}
			return printRecords(cmd, records)
		}),
	}

	page.register(cmd)
	cmd.Flags().StringArrayVarP(&where, "where", "w", nil, "Criterion as field=value (repeatable)")
	cmd.Flags().StringVar(&queryJSON, "query", "", "Full query array as JSON (- for stdin, @file)")

	return cmd
}

// printRecords writes records as JSON, or as a table of ID, modification ID
// and every field seen.
func printRecords(cmd *cobra.Command, records fmrest.RecordsResponse) error {
	f := newFormatter(cmd)
	if ok, err := f.Output(records); ok {
		return err
	}
	if len(records.Data) == 0 {
		f.Empty("No records found.")
		return nil
	}

	seen := make(map[string]bool)
	var columns []string
	for _, r := range records.Data {
		for _, name := range sortedKeys(r.FieldData) {
			if !seen[name] {
				seen[name] = true
				columns = append(columns, name)
			}
		}
	}

	f.StartTable(append([]string{"RECORD_ID", "MOD_ID"}, columns...)...)
	for _, r := range records.Data {
		row := []string{r.RecordID, r.ModID}
		for _, name := range columns {
			row = append(row, formatFieldValue(r.FieldData[name]))
		}
		f.Row(row...)
	}
	return f.EndTable()
}

func formatFieldValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.ReplaceAll(val, "\r", " ")
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}
