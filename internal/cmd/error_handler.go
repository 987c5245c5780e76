package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fmrest/fmrest-cli/internal/config"
	"github.com/fmrest/fmrest-cli/internal/fmrest"
	"github.com/fmrest/fmrest-cli/internal/resolve"
)

// HandleError processes an error and returns a user-friendly message with suggestions
func HandleError(err error) string {
	if err == nil {
		return ""
	}

	var msg strings.Builder
	var fmErr *fmrest.Error
	var notFound *resolve.NotFoundError
	var ambiguous *resolve.AmbiguousError

	switch {
	case errors.Is(err, config.ErrNotConfigured):
		msg.WriteString("No FileMaker server configured.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Run: fmrest profile set <name> --host <host> --database <db>\n")
		msg.WriteString("  - Or export FMREST_HOST and FMREST_DATABASE\n")

	case errors.As(err, &ambiguous):
		fmt.Fprintf(&msg, "Error: %s\n", ambiguous.Error())
		msg.WriteString("\nSuggestions:\n")
		msg.WriteString("  - Use the full layout name\n")
		msg.WriteString("  - Run: fmrest layouts\n")

	case errors.As(err, &notFound):
		fmt.Fprintf(&msg, "Error: %s\n", notFound.Error())
		msg.WriteString("\nSuggestions:\n")
		msg.WriteString("  - Run: fmrest layouts\n")

	case errors.As(err, &fmErr):
		fmt.Fprintf(&msg, "Error: %s\n", err.Error())
		var suggestions []string
		if s := fmErr.Kind.Suggestion(); s != "" {
			suggestions = append(suggestions, s)
		}
		suggestions = append(suggestions, messageSuggestions(fmErr)...)
		if len(suggestions) > 0 {
			msg.WriteString("\nSuggestions:\n")
			for _, s := range suggestions {
				fmt.Fprintf(&msg, "  - %s\n", s)
			}
		}

	default:
		fmt.Fprintf(&msg, "Error: %s\n", err.Error())
	}

	return msg.String()
}

// messageSuggestions adds hints keyed on FileMaker message codes.
func messageSuggestions(e *fmrest.Error) []string {
	var out []string
	if fmrest.IsSessionExpired(e) {
		out = append(out, "Run: fmrest token set <token>")
	}
	if e.HasMessageCode(fmrest.CodeLayoutMissing) {
		out = append(out, "Run: fmrest layouts")
	}
	if e.HasMessageCode(fmrest.CodeFieldMissing) {
		out = append(out, "Run: fmrest layout-metadata <layout> to list fields")
	}
	if e.HasMessageCode(fmrest.CodeRecordMissing) {
		out = append(out, "The record may have been deleted")
	}
	return out
}

// errorPayload is the JSON form of an error written to stderr in JSON mode.
func errorPayload(err error) map[string]any {
	payload := map[string]any{
		"error": err.Error(),
	}
	var fmErr *fmrest.Error
	if errors.As(err, &fmErr) {
		payload["kind"] = fmErr.Kind.String()
		if fmErr.Code != 0 {
			payload["status"] = fmErr.Code
		}
		if len(fmErr.Messages) > 0 {
			payload["messages"] = fmErr.Messages
		}
		if s := fmErr.Kind.Suggestion(); s != "" {
			payload["suggestion"] = s
		}
	}
	return payload
}
