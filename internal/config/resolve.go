package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/fmrest/fmrest-cli/internal/fmrest"
)

// Environment overrides. FMREST_HOST alone is enough to skip the keyring.
const (
	EnvHost       = "FMREST_HOST"
	EnvDatabase   = "FMREST_DATABASE"
	EnvToken      = "FMREST_TOKEN"
	EnvVersion    = "FMREST_VERSION"
	EnvScheme     = "FMREST_SCHEME"
	EnvRootPath   = "FMREST_ROOT_PATH"
	EnvProfile    = "FMREST_PROFILE"
	EnvRedisURL   = "FMREST_REDIS_URL"
	EnvTokenStore = "FMREST_TOKEN_STORE"
)

// EnvProfileName is the profile name reported when FMREST_HOST is set.
const EnvProfileName = "env"

// Resolved is the profile in effect for one invocation.
type Resolved struct {
	Name string
	Profile
}

// Resolve picks the profile (override, then FMREST_PROFILE, then the current
// profile) and layers environment overrides on top.
func Resolve(profileOverride string) (Resolved, error) {
	var res Resolved
	if host := envValue(EnvHost); host != "" {
		res = Resolved{Name: EnvProfileName, Profile: Profile{Host: host}}
	} else {
		name := strings.TrimSpace(profileOverride)
		if name == "" {
			name = envValue(EnvProfile)
		}
		if name == "" {
			current, err := CurrentProfile()
			if err != nil {
				return Resolved{}, err
			}
			name = current
		}
		p, err := LoadProfile(name)
		if err != nil {
			return Resolved{}, err
		}
		res = Resolved{Name: name, Profile: p}
	}

	applyEnv(&res.Profile)
	res.Host = NormalizeHost(res.Host)
	if res.Host == "" {
		return Resolved{}, ErrNotConfigured
	}
	return res, nil
}

func applyEnv(p *Profile) {
	overrides := []struct {
		key string
		dst *string
	}{
		{EnvDatabase, &p.Database},
		{EnvToken, &p.Token},
		{EnvVersion, &p.Version},
		{EnvScheme, &p.Scheme},
		{EnvRootPath, &p.RootPath},
		{EnvRedisURL, &p.RedisURL},
		{EnvTokenStore, &p.TokenStore},
	}
	for _, o := range overrides {
		if v := envValue(o.key); v != "" {
			*o.dst = v
		}
	}
}

// NormalizeHost strips a scheme and trailing slashes so "https://fms.example.com/"
// and "fms.example.com" name the same host.
func NormalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	return strings.TrimRight(host, "/")
}

// FMConfig returns the request configuration described by p.
func (p Profile) FMConfig() (*fmrest.Config, error) {
	cfg := fmrest.DefaultConfig()
	if p.Version != "" {
		cfg.Version = p.Version
	}
	if p.Scheme != "" {
		cfg.Scheme = p.Scheme
	}
	if p.RootPath != "" {
		cfg.RootPath = p.RootPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	return cfg, nil
}

// RequireDatabase returns the database name or an error naming how to set it.
func (p Profile) RequireDatabase() (string, error) {
	if strings.TrimSpace(p.Database) == "" {
		return "", fmt.Errorf("no database configured (set %s or use 'fmrest profile set --database')", EnvDatabase)
	}
	return p.Database, nil
}

// DotEnvPath is the default location of the .env file.
func DotEnvPath() string {
	return filepath.Join(Dir(), ".env")
}

// LoadDotEnv loads path (DotEnvPath when empty) into the environment. Variables
// already set are left alone. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = DotEnvPath()
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
