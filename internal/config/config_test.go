package config

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/99designs/keyring"
)

// withMockKeyring sets up a mock keyring for the duration of a test
func withMockKeyring(t *testing.T) *keyring.ArrayKeyring {
	t.Helper()
	ring := keyring.NewArrayKeyring(nil)
	restore := SetOpenKeyring(func(keyring.Config) (keyring.Keyring, error) {
		return ring, nil
	})
	t.Cleanup(restore)
	return ring
}

// withFailingKeyring sets up a keyring that always fails to open
func withFailingKeyring(t *testing.T, err error) {
	t.Helper()
	t.Cleanup(SetOpenKeyring(func(keyring.Config) (keyring.Keyring, error) {
		return nil, err
	}))
}

func TestSaveAndLoadProfile(t *testing.T) {
	withMockKeyring(t)

	want := Profile{Host: "fms.example.com", Database: "Sales", Version: "v1", Token: "tok"}
	if err := SaveProfile("work", want); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}

	got, err := LoadProfile("work")
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if got != want {
		t.Errorf("LoadProfile = %+v, want %+v", got, want)
	}

	current, err := CurrentProfile()
	if err != nil || current != "work" {
		t.Errorf("CurrentProfile = %q, %v; want work", current, err)
	}
}

func TestLoadProfileNotConfigured(t *testing.T) {
	withMockKeyring(t)
	if _, err := LoadProfile("missing"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestLoadProfileInvalidJSON(t *testing.T) {
	ring := withMockKeyring(t)
	_ = ring.Set(keyring.Item{Key: profileKey("bad"), Data: []byte("{")})
	if _, err := LoadProfile("bad"); err == nil {
		t.Error("expected error for invalid profile data")
	}
}

func TestListProfilesDeduplicates(t *testing.T) {
	withMockKeyring(t)
	for _, name := range []string{"a", "b", "a"} {
		if err := SaveProfile(name, Profile{Host: name}); err != nil {
			t.Fatal(err)
		}
	}
	profiles, err := ListProfiles()
	if err != nil {
		t.Fatal(err)
	}
	if len(profiles) != 2 || profiles[0] != "a" || profiles[1] != "b" {
		t.Errorf("ListProfiles = %v, want [a b]", profiles)
	}
}

func TestDeleteProfileSwitchesCurrentProfile(t *testing.T) {
	withMockKeyring(t)
	_ = SaveProfile("a", Profile{Host: "a"})
	_ = SaveProfile("b", Profile{Host: "b"})

	if err := DeleteProfile("b"); err != nil {
		t.Fatalf("DeleteProfile: %v", err)
	}
	current, _ := CurrentProfile()
	if current != "a" {
		t.Errorf("current profile = %q, want a", current)
	}
	if _, err := LoadProfile("b"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("deleted profile should be gone, got %v", err)
	}
}

func TestCurrentProfileDefault(t *testing.T) {
	withMockKeyring(t)
	current, err := CurrentProfile()
	if err != nil || current != defaultProfile {
		t.Errorf("CurrentProfile = %q, %v; want %q", current, err, defaultProfile)
	}
}

func TestKeyringErrors(t *testing.T) {
	boom := errors.New("boom")
	withFailingKeyring(t, boom)

	if err := SaveProfile("x", Profile{}); !errors.Is(err, boom) {
		t.Errorf("SaveProfile error = %v", err)
	}
	if _, err := LoadProfile("x"); !errors.Is(err, boom) {
		t.Errorf("LoadProfile error = %v", err)
	}
	if _, err := ListProfiles(); !errors.Is(err, boom) {
		t.Errorf("ListProfiles error = %v", err)
	}
	if err := DeleteProfile("x"); !errors.Is(err, boom) {
		t.Errorf("DeleteProfile error = %v", err)
	}
}

func TestKeyringConfig_FileBackendOverride(t *testing.T) {
	t.Setenv(envKeyringBackend, "file")
	base := t.TempDir()
	t.Setenv(envCredentialsDir, base)

	cfg := keyringConfig()
	if cfg.ServiceName != ServiceName {
		t.Errorf("ServiceName = %q", cfg.ServiceName)
	}
	if len(cfg.AllowedBackends) != 1 || cfg.AllowedBackends[0] != keyring.FileBackend {
		t.Fatalf("AllowedBackends = %v, want [%s]", cfg.AllowedBackends, keyring.FileBackend)
	}
	if want := filepath.Join(base, "keyring"); cfg.FileDir != want {
		t.Errorf("FileDir = %q, want %q", cfg.FileDir, want)
	}
}

func TestKeyringConfig_SystemBackendOverride(t *testing.T) {
	t.Setenv(envKeyringBackend, "native")

	cfg := keyringConfig()
	if cfg.FileDir != "" || cfg.FilePasswordFunc != nil {
		t.Error("system backend should not configure the file backend")
	}
}

func TestShouldForceFileBackend(t *testing.T) {
	tests := []struct {
		goos, backend, dbus string
		want                bool
	}{
		{"darwin", keyringBackendFile, "x", true},
		{"linux", keyringBackendAuto, "", true},
		{"linux", keyringBackendAuto, "unix:path=/run/user/1000/bus", false},
		{"darwin", keyringBackendAuto, "", false},
		{"linux", keyringBackendSystem, "", false},
	}
	for _, tt := range tests {
		if got := shouldForceFileBackend(tt.goos, tt.backend, tt.dbus); got != tt.want {
			t.Errorf("shouldForceFileBackend(%q, %q, %q) = %v, want %v", tt.goos, tt.backend, tt.dbus, got, tt.want)
		}
	}
}

func TestKeyringFilePassword(t *testing.T) {
	t.Setenv(envKeyringPassword, "s3cret")
	got, err := keyringFilePassword("prompt")
	if err != nil || got != "s3cret" {
		t.Errorf("keyringFilePassword = %q, %v", got, err)
	}

	t.Setenv(envKeyringPassword, "")
	orig := stdinHasTTY
	stdinHasTTY = func() bool { return false }
	t.Cleanup(func() { stdinHasTTY = orig })
	if _, err := keyringFilePassword("prompt"); err == nil {
		t.Error("expected error without a TTY")
	}
}
