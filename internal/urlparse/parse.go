// Package urlparse splits FileMaker Data API URLs into connection details.
package urlparse

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// ParsedURL holds what a Data API URL says about its target.
type ParsedURL struct {
	Scheme   string
	Host     string // host[:port]
	RootPath string // e.g. "/fmi/data/"
	Version  string // "vLatest", "v1", ...
	Database string
	Layout   string // optional
	RecordID int    // optional, 0 if not present
}

// pathPattern matches {root}{version}/databases/{db}[/layouts/{layout}[/records/{id}]][/...]
var pathPattern = regexp.MustCompile(`^(/(?:[^/]+/)*?)(vLatest|v\d+)/databases/([^/]+)(?:/layouts/([^/]+)(?:/records/(\d+))?)?(?:/.*)?$`)

// Parse extracts connection details from a Data API URL such as
// https://fms.example.com/fmi/data/vLatest/databases/Sales/layouts/Contacts/records/12.
func Parse(rawURL string) (*ParsedURL, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("URL cannot be empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" {
		return nil, fmt.Errorf("invalid URL: missing scheme (expected https://...)")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL scheme %q: expected http or https", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("invalid URL: missing host")
	}

	// EscapedPath keeps %2F inside a layout name from splitting segments.
	matches := pathPattern.FindStringSubmatch(parsed.EscapedPath())
	if matches == nil {
		return nil, fmt.Errorf("invalid Data API URL: expected {root}/{version}/databases/{database}[/layouts/{layout}[/records/{id}]]")
	}

	out := &ParsedURL{
		Scheme:   parsed.Scheme,
		Host:     parsed.Host,
		RootPath: matches[1],
		Version:  matches[2],
	}
	if out.Database, err = url.PathUnescape(matches[3]); err != nil {
		return nil, fmt.Errorf("invalid database name: %w", err)
	}
	if matches[4] != "" {
		if out.Layout, err = url.PathUnescape(matches[4]); err != nil {
			return nil, fmt.Errorf("invalid layout name: %w", err)
		}
	}
	if matches[5] != "" {
		if out.RecordID, err = strconv.Atoi(matches[5]); err != nil {
			return nil, fmt.Errorf("invalid record ID: %w", err)
		}
	}
	return out, nil
}

// HasRecordID returns true if the URL names a record.
func (p *ParsedURL) HasRecordID() bool {
	return p.RecordID > 0
}
