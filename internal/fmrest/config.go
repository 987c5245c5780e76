package fmrest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Defaults for a FileMaker Server Data API host.
const (
	DefaultVersion  = "vLatest"
	DefaultScheme   = "https"
	DefaultRootPath = "/fmi/data/"
)

// Encoder serializes outbound payloads.
type Encoder interface {
	Encode(v any) ([]byte, error)
}

// Decoder parses inbound bodies into v.
type Decoder interface {
	Decode(data []byte, v any) error
}

// JSONEncoder encodes with encoding/json.
type JSONEncoder struct{}

// Encode implements Encoder.
func (JSONEncoder) Encode(v any) ([]byte, error) { return json.Marshal(v) }

// JSONDecoder decodes with encoding/json.
type JSONDecoder struct{}

// Decode implements Decoder.
func (JSONDecoder) Decode(data []byte, v any) error { return json.Unmarshal(data, v) }

// Config describes how requests are addressed and how bodies are (de)serialized.
//
// A Config is typically shared for a whole session. It is read, never written, by
// the request builder and the pipeline, so callers may change Options between
// calls and the change applies to the next call.
type Config struct {
	Version  string
	Scheme   string
	RootPath string
	Encoder  Encoder
	Decoder  Decoder
	Options  ServerOptions
}

// DefaultConfig returns the standard Data API addressing with JSON codecs.
func DefaultConfig() *Config {
	return &Config{
		Version:  DefaultVersion,
		Scheme:   DefaultScheme,
		RootPath: DefaultRootPath,
		Encoder:  JSONEncoder{},
		Decoder:  JSONDecoder{},
	}
}

var errEmptyScheme = errors.New("scheme is required")

// Validate reports configuration values the Data API would never accept.
// The builder itself does not call Validate; values are used as given.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Scheme) == "" {
		return errEmptyScheme
	}
	if !ValidVersion(c.Version) {
		return fmt.Errorf("invalid API version %q: want vLatest or vN", c.Version)
	}
	return nil
}

// ValidVersion reports whether v names a Data API version ("vLatest", "v1", "v2", ...).
func ValidVersion(v string) bool {
	if v == DefaultVersion {
		return true
	}
	return semver.IsValid(v) && semver.Major(v) == v
}

func (c *Config) encoder() Encoder {
	if c != nil && c.Encoder != nil {
		return c.Encoder
	}
	return JSONEncoder{}
}

func (c *Config) decoder() Decoder {
	if c != nil && c.Decoder != nil {
		return c.Decoder
	}
	return JSONDecoder{}
}
