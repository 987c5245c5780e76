package fmrest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Method is an HTTP method accepted by the Data API.
type Method string

const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodDelete Method = http.MethodDelete
	MethodPatch  Method = http.MethodPatch
	MethodPut    Method = http.MethodPut
)

// ParseMethod accepts a method name in any case.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToUpper(strings.TrimSpace(s))); m {
	case MethodGet, MethodPost, MethodDelete, MethodPatch, MethodPut:
		return m, nil
	}
	return "", fmt.Errorf("invalid HTTP method %q: must be one of GET, POST, PUT, PATCH, DELETE", s)
}

// QueryItem is one name=value query parameter. Order is preserved on the wire.
type QueryItem struct {
	Name  string
	Value string
}

// Query builds query items from alternating name, value pairs.
// A trailing name without a value is dropped.
func Query(pairs ...string) []QueryItem {
	items := make([]QueryItem, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		items = append(items, QueryItem{Name: pairs[i], Value: pairs[i+1]})
	}
	return items
}

const (
	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json"
)

type bodyKind int

const (
	bodyNone bodyKind = iota
	bodyJSON
	bodyMultipart
)

// body is the outbound payload variant; exactly one kind per request.
type body struct {
	kind bodyKind
	data []byte
	file ContainerFile
}

// Request is a fully addressed call, built once and never modified afterwards.
type Request struct {
	Method Method
	URL    string
	Header http.Header
	Body   []byte
}

// NewRequest builds a request without a body.
func NewRequest(creds Credentials, host string, cfg *Config, method Method, ep Endpoint, query []QueryItem) *Request {
	return build(creds, host, cfg, method, ep, query, body{kind: bodyNone})
}

// NewJSONRequest builds a request whose body is payload encoded with the
// config's encoder. Encoding failures are returned as KindEncoding errors.
func NewJSONRequest(creds Credentials, host string, cfg *Config, method Method, ep Endpoint, query []QueryItem, payload any) (*Request, error) {
	data, err := cfg.encoder().Encode(payload)
	if err != nil {
		return nil, &Error{Kind: KindEncoding, Err: err}
	}
	return build(creds, host, cfg, method, ep, query, body{kind: bodyJSON, data: data}), nil
}

// NewUploadRequest builds a multipart upload of file using a fresh boundary.
func NewUploadRequest(creds Credentials, host string, cfg *Config, method Method, ep Endpoint, query []QueryItem, file ContainerFile) *Request {
	return build(creds, host, cfg, method, ep, query, body{kind: bodyMultipart, file: file})
}

func build(creds Credentials, host string, cfg *Config, method Method, ep Endpoint, query []QueryItem, b body) *Request {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	path := ""
	if ep != nil {
		path = ep.Path()
	}
	req := &Request{
		Method: method,
		URL:    buildURL(cfg.Scheme, host, cfg.RootPath, cfg.Version, path, query),
		Header: make(http.Header),
	}

	switch b.kind {
	case bodyJSON:
		req.Header.Set(headerContentType, contentTypeJSON)
		req.Body = b.data
	case bodyMultipart:
		boundary := newBoundary()
		req.Header.Set(headerContentType, MultipartContentType(boundary))
		req.Body = EncodeMultipart(b.file, boundary)
	case bodyNone:
	}

	// Credential headers go last and win over anything set above.
	if creds != nil {
		for _, h := range creds.Headers() {
			req.Header.Set(h.Field, h.Value)
		}
	}
	return req
}

// buildURL renders scheme://host/rootPath+version+path[?query]. The path parts
// are joined verbatim; endpoint segments arrive already escaped.
func buildURL(scheme, host, rootPath, version, path string, query []QueryItem) string {
	escaped := rootPath + version + path
	u := url.URL{Scheme: scheme, Host: host}
	if unescaped, err := url.PathUnescape(escaped); err == nil {
		u.Path = unescaped
		u.RawPath = escaped
	} else {
		u.Path = escaped
	}
	if len(query) > 0 {
		u.RawQuery = encodeQuery(query)
	}
	return u.String()
}

func encodeQuery(items []QueryItem) string {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(item.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(item.Value))
	}
	return b.String()
}

// HTTPRequest converts r into a *http.Request bound to ctx. The header map is
// cloned so the transport cannot mutate r.
func (r *Request) HTTPRequest(ctx context.Context) (*http.Request, error) {
	var reader io.Reader
	if len(r.Body) > 0 {
		reader = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, string(r.Method), r.URL, reader)
	if err != nil {
		return nil, err
	}
	req.Header = r.Header.Clone()
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	return req, nil
}

// ContentType returns the Content-Type header value, if any.
func (r *Request) ContentType() string {
	return r.Header.Get(headerContentType)
}
