package fmrest

import "strings"

// Header is a single request header field.
type Header struct {
	Field string
	Value string
}

// Credentials supplies the headers attached to every request.
// Implementations must not mutate the returned slice after handing it out.
type Credentials interface {
	Headers() []Header
}

// StaticCredentials is a fixed, ordered list of headers.
type StaticCredentials []Header

// Headers implements Credentials.
func (s StaticCredentials) Headers() []Header {
	out := make([]Header, len(s))
	copy(out, s)
	return out
}

// BearerToken returns credentials carrying a Data API session token.
// An empty token yields no headers.
func BearerToken(token string) StaticCredentials {
	token = strings.TrimSpace(token)
	if token == "" {
		return StaticCredentials{}
	}
	return StaticCredentials{{Field: "Authorization", Value: "Bearer " + token}}
}

// With returns a copy of s with h appended.
func (s StaticCredentials) With(h Header) StaticCredentials {
	out := make(StaticCredentials, 0, len(s)+1)
	out = append(out, s...)
	return append(out, h)
}
