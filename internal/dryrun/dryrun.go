// Package dryrun previews mutating Data API calls without sending them.
package dryrun

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

type contextKey string

const dryRunKey contextKey = "dry_run_enabled"

// WithDryRun returns a context with dry-run mode enabled/disabled.
func WithDryRun(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, dryRunKey, enabled)
}

// IsEnabled returns true if dry-run mode is enabled.
func IsEnabled(ctx context.Context) bool {
	if v, ok := ctx.Value(dryRunKey).(bool); ok {
		return v
	}
	return false
}

// Preview describes the request a command would have sent.
type Preview struct {
	Operation string
	Resource  string
	Method    string
	URL       string
	// Body is the decoded JSON payload, or a short description for
	// non-JSON bodies. Nil means no body.
	Body     any
	Warnings []string
}

const rule = "───────────────────────────────────────"

// Write outputs the preview to the writer
func (p *Preview) Write(w io.Writer) {
	_, _ = fmt.Fprintf(w, "\n[DRY-RUN] Would %s %s\n", p.Operation, p.Resource)
	_, _ = fmt.Fprintln(w, rule)

	if p.Method != "" {
		_, _ = fmt.Fprintf(w, "  %s %s\n", p.Method, p.URL)
	}
	switch body := p.Body.(type) {
	case nil:
	case string:
		_, _ = fmt.Fprintf(w, "  body: %s\n", body)
	default:
		data, err := json.MarshalIndent(body, "  ", "  ")
		if err == nil {
			_, _ = fmt.Fprintf(w, "  body: %s\n", data)
		}
	}

	if len(p.Warnings) > 0 {
		_, _ = fmt.Fprintln(w, "\nWarnings:")
		for _, warning := range p.Warnings {
			_, _ = fmt.Fprintf(w, "  ! %s\n", warning)
		}
	}

	_, _ = fmt.Fprintln(w, rule)
	_, _ = fmt.Fprintln(w, "No changes made (dry-run mode)")
}

// Payload is the JSON form of the preview.
func (p *Preview) Payload() map[string]any {
	payload := map[string]any{
		"dry_run":   true,
		"operation": p.Operation,
		"resource":  p.Resource,
		"method":    p.Method,
		"url":       p.URL,
	}
	if p.Body != nil {
		payload["body"] = p.Body
	}
	if len(p.Warnings) > 0 {
		payload["warnings"] = p.Warnings
	}
	return payload
}
