package fmrest

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{&Error{Kind: KindNotFound, Code: 404}, "Not Found (status 404)"},
		{&Error{Kind: KindStatus, Code: 418}, "unexpected status 418"},
		{&Error{Kind: KindAPI, Code: 500, Messages: []Message{{Code: 105, Text: "Layout is missing"}}}, "API error (status 500): 105: Layout is missing"},
		{&Error{Kind: KindResponse, Detail: "no status"}, "invalid response: no status"},
		{&Error{Kind: KindUnknown}, "unknown error"},
		{&Error{Kind: KindAuthType, Detail: "no token configured"}, "authentication: no token configured"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", statusError(404))
	if !errors.Is(err, &Error{Kind: KindNotFound}) {
		t.Error("expected errors.Is to match by kind")
	}
	if errors.Is(err, &Error{Kind: KindNotFound, Code: 410}) {
		t.Error("code mismatch should not match")
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound should be true")
	}
	if IsUnauthorized(err) || IsForbidden(err) || IsAPIError(err) {
		t.Error("other predicates should be false")
	}
}

func TestKindOfForeignError(t *testing.T) {
	if k := KindOf(errors.New("x")); k != KindUnknown {
		t.Errorf("KindOf(foreign) = %v", k)
	}
	if AsError(nil) != nil {
		t.Error("AsError(nil) should be nil")
	}
	if e := AsError(errors.New("x")); e.Kind != KindUnknown || e.Err == nil {
		t.Errorf("AsError(foreign) = %+v", e)
	}
}

func TestMessageCodePredicates(t *testing.T) {
	noMatch := &Error{Kind: KindAPI, Code: 500, Messages: []Message{{Code: CodeNoRecordsMatch, Text: "No records match the request"}}}
	if !IsNoRecordsMatch(noMatch) {
		t.Error("expected IsNoRecordsMatch")
	}
	expired := &Error{Kind: KindAPI, Code: 401, Messages: []Message{{Code: CodeInvalidToken, Text: "Invalid FileMaker Data API token"}}}
	if !IsSessionExpired(expired) || !IsSessionExpired(statusError(401)) {
		t.Error("expected IsSessionExpired")
	}
	if IsSessionExpired(noMatch) {
		t.Error("no-records-match is not session expiry")
	}
	missing := &Error{Kind: KindAPI, Code: 500, Messages: []Message{{Code: CodeLayoutMissing, Text: "Layout is missing"}}}
	if !IsLayoutMissing(missing) || IsLayoutMissing(noMatch) {
		t.Error("IsLayoutMissing should only match code 105")
	}
}

func TestKindStringAndSuggestion(t *testing.T) {
	if KindAPI.String() != "api_error" {
		t.Errorf("KindAPI.String() = %q", KindAPI.String())
	}
	if Kind(99).String() != "kind(99)" {
		t.Errorf("unexpected out of range name %q", Kind(99).String())
	}
	if KindUnauthorized.Suggestion() == "" {
		t.Error("KindUnauthorized should have a suggestion")
	}
}
