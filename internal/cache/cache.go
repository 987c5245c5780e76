// Package cache keeps short-lived copies of server metadata on disk.
//
// Entries are JSON files scoped per resource, host and database. They back
// layout-name resolution so a mistyped --layout does not always cost an
// extra round trip. Set FMREST_NO_CACHE=1 to disable.
package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultTTL matches the Data API session idle timeout.
const DefaultTTL = 15 * time.Minute

// Environment knobs.
const (
	EnvDisable = "FMREST_NO_CACHE"
	EnvDir     = "FMREST_CACHE_DIR"
)

type entry struct {
	CachedAt time.Time       `json:"cached_at"`
	Items    json.RawMessage `json:"items"`
}

// Store reads and writes one cache entry.
type Store struct {
	path string
	ttl  time.Duration
}

// NewStore returns the store for resource (e.g. "layouts") on the given
// host and database.
func NewStore(dir, resource, host, database string) *Store {
	return NewStoreWithTTL(dir, resource, host, database, DefaultTTL)
}

// NewStoreWithTTL is NewStore with a custom TTL.
func NewStoreWithTTL(dir, resource, host, database string, ttl time.Duration) *Store {
	sum := sha1.Sum([]byte(strings.ToLower(host) + "/" + database))
	filename := fmt.Sprintf("%s_%s.json", sanitizeKey(resource), hex.EncodeToString(sum[:6]))
	return &Store{path: filepath.Join(dir, filename), ttl: ttl}
}

// Path is the file backing the store.
func (s *Store) Path() string { return s.path }

// Get loads cached items into dst. It reports false on a miss: no file,
// expired entry, unreadable entry, or caching disabled.
func (s *Store) Get(dst any) bool {
	if Disabled() {
		return false
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return false
	}
	if time.Since(e.CachedAt) > s.ttl {
		return false
	}
	return json.Unmarshal(e.Items, dst) == nil
}

// Put writes items. Failures are ignored; the cache is an optimization.
func (s *Store) Put(items any) {
	if Disabled() {
		return
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return
	}
	data, err := json.Marshal(entry{CachedAt: time.Now(), Items: raw})
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return
	}

	// Write then rename so readers never see a partial file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		_ = os.Remove(tmp)
		return
	}
	_ = os.Rename(tmp, s.path)
}

// Clear removes this entry.
func (s *Store) Clear() {
	_ = os.Remove(s.path)
}

// ClearAll removes every cache entry in dir and returns how many were
// removed. Files not named like cache entries are left alone.
func ClearAll(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() || !isCacheFilename(e.Name()) {
			continue
		}
		if os.Remove(filepath.Join(dir, e.Name())) == nil {
			n++
		}
	}
	return n
}

// Dir returns FMREST_CACHE_DIR, or fmrest-cli under the user cache dir.
func Dir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(EnvDir)); dir != "" {
		return dir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "fmrest-cli"), nil
}

// Disabled reports whether FMREST_NO_CACHE is set.
func Disabled() bool {
	return os.Getenv(EnvDisable) != ""
}

func sanitizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "cache"
	}
	return strings.NewReplacer("/", "-", "\\", "-", "_", "-").Replace(key)
}

// isCacheFilename matches "<resource>_<12 hex>.json".
func isCacheFilename(name string) bool {
	if filepath.Ext(name) != ".json" {
		return false
	}
	resource, suffix, ok := strings.Cut(strings.TrimSuffix(name, ".json"), "_")
	if !ok || resource == "" || len(suffix) != 12 {
		return false
	}
	_, err := hex.DecodeString(suffix)
	return err == nil
}
