package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvHost, EnvDatabase, EnvToken, EnvVersion, EnvScheme, EnvRootPath, EnvProfile, EnvRedisURL, EnvTokenStore} {
		t.Setenv(key, "")
	}
}

func TestResolveFromEnv(t *testing.T) {
	clearEnv(t)
	withFailingKeyring(t, errors.New("keyring should not be opened"))
	t.Setenv(EnvHost, "https://fms.example.com/")
	t.Setenv(EnvDatabase, "Sales")
	t.Setenv(EnvToken, "tok")

	res, err := Resolve("")
	require.NoError(t, err)
	assert.Equal(t, EnvProfileName, res.Name)
	assert.Equal(t, "fms.example.com", res.Host)
	assert.Equal(t, "Sales", res.Database)
	assert.Equal(t, "tok", res.Token)
}

func TestResolveProfileOrder(t *testing.T) {
	clearEnv(t)
	withMockKeyring(t)
	require.NoError(t, SaveProfile("a", Profile{Host: "a.example.com", Database: "A"}))
	require.NoError(t, SaveProfile("b", Profile{Host: "b.example.com", Database: "B"}))

	res, err := Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "b", res.Name, "current profile is the last saved")

	t.Setenv(EnvProfile, "a")
	res, err = Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "a", res.Name)

	res, err = Resolve("b")
	require.NoError(t, err)
	assert.Equal(t, "b", res.Name)

	t.Setenv(EnvDatabase, "Override")
	res, err = Resolve("b")
	require.NoError(t, err)
	assert.Equal(t, "Override", res.Database)
}

func TestResolveMissingHost(t *testing.T) {
	clearEnv(t)
	withMockKeyring(t)
	require.NoError(t, SaveProfile("empty", Profile{Database: "x"}))

	_, err := Resolve("empty")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestProfileFMConfig(t *testing.T) {
	cfg, err := Profile{}.FMConfig()
	require.NoError(t, err)
	assert.Equal(t, "vLatest", cfg.Version)
	assert.Equal(t, "https", cfg.Scheme)
	assert.Equal(t, "/fmi/data/", cfg.RootPath)

	cfg, err = Profile{Version: "v2", Scheme: "http", RootPath: "/api/"}.FMConfig()
	require.NoError(t, err)
	assert.Equal(t, "v2", cfg.Version)
	assert.Equal(t, "http", cfg.Scheme)
	assert.Equal(t, "/api/", cfg.RootPath)

	_, err = Profile{Version: "latest"}.FMConfig()
	assert.Error(t, err)
}

func TestRequireDatabase(t *testing.T) {
	_, err := Profile{}.RequireDatabase()
	assert.Error(t, err)
	db, err := Profile{Database: "Sales"}.RequireDatabase()
	require.NoError(t, err)
	assert.Equal(t, "Sales", db)
}

func TestNormalizeHost(t *testing.T) {
	assert.Equal(t, "fms.example.com:8443", NormalizeHost(" https://fms.example.com:8443// "))
	assert.Equal(t, "fms.example.com", NormalizeHost("fms.example.com"))
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("FMREST_DATABASE=FromFile\nFMREST_SCHEME=http\n"), 0o600))

	t.Setenv(EnvScheme, "https")
	// An empty but set variable counts as set; unset it so the file can fill it.
	require.NoError(t, os.Unsetenv(EnvDatabase))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "FromFile", os.Getenv(EnvDatabase))
	assert.Equal(t, "https", os.Getenv(EnvScheme), "existing variables are not overwritten")

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}
