// Package settings loads the user mapping of SSIDs to hosts blocks from a TOML file.
// The file is re-read on every Load so live edits take effect on the next cycle; parsing is
// skipped when the bytes are unchanged.
package settings

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/rawbytes"

	"github.com/haukened/auto-hosts/internal/hosts/domain"
)

const (
	keyHostsPath = "hosts_path"
	keySSID      = "ssid"

	defaultCacheSize = 8
)

// Store reads config.toml and converts it into domain.Settings.
type Store struct {
	path  string
	cache *lru.Cache[[sha256.Size]byte, domain.Settings]
}

// New returns a Store for the TOML file at path. The file does not have to exist yet.
func New(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("settings path must not be empty")
	}
	cache, err := lru.New[[sha256.Size]byte, domain.Settings](defaultCacheSize)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, cache: cache}, nil
}

// Path returns the location of the TOML file.
func (s *Store) Path() string {
	return s.path
}

// EnsureDefault writes the documented example config when no file exists at Path.
// It reports whether a file was created.
func (s *Store) EnsureDefault() (bool, error) {
	_, err := os.Stat(s.path)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	if err := os.WriteFile(s.path, []byte(DefaultConfig(DefaultHostsPath())), 0o644); err != nil {
		return false, fmt.Errorf("write default config %s: %w", s.path, err)
	}
	return true, nil
}

// Load reads and parses the file. Every failure wraps domain.ErrConfigLoad.
func (s *Store) Load() (domain.Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("%w: %w", domain.ErrConfigLoad, err)
	}

	sum := sha256.Sum256(data)
	if cached, ok := s.cache.Get(sum); ok {
		return clone(cached), nil
	}

	parsed, err := Parse(data)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("%w: %s: %w", domain.ErrConfigLoad, s.path, err)
	}
	s.cache.Add(sum, parsed)
	return clone(parsed), nil
}

// Parse converts TOML bytes into domain.Settings.
//
// hosts_path is required. The [ssid] table is required and maps network names to block
// text; scalar non-string values are stringified, nested tables are rejected.
func Parse(data []byte) (domain.Settings, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), toml.Parser()); err != nil {
		return domain.Settings{}, fmt.Errorf("parse toml: %w", err)
	}

	raw := k.Raw()

	hostsPath, ok := raw[keyHostsPath].(string)
	if !ok {
		return domain.Settings{}, fmt.Errorf("missing or non-string '%s'", keyHostsPath)
	}

	table, ok := raw[keySSID].(map[string]any)
	if !ok {
		return domain.Settings{}, fmt.Errorf("missing '[%s]' table", keySSID)
	}

	entries := make(map[string]string, len(table))
	for name, val := range table {
		text, err := entryText(val)
		if err != nil {
			return domain.Settings{}, fmt.Errorf("ssid %q: %w", name, err)
		}
		entries[name] = text
	}

	st := domain.Settings{HostsPath: hostsPath, Entries: entries}
	if err := st.Validate(); err != nil {
		return domain.Settings{}, err
	}
	return st, nil
}

func entryText(val any) (string, error) {
	switch v := val.(type) {
	case string:
		return v, nil
	case bool, int, int64, float64:
		return fmt.Sprint(v), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("unsupported value type %T", val)
	}
}

func clone(s domain.Settings) domain.Settings {
	entries := make(map[string]string, len(s.Entries))
	for k, v := range s.Entries {
		entries[k] = v
	}
	return domain.Settings{HostsPath: s.HostsPath, Entries: entries}
}

// DefaultHostsPath returns the hosts file location for the running OS.
func DefaultHostsPath() string {
	if runtime.GOOS == "windows" {
		return `C:\Windows\System32\drivers\etc\hosts`
	}
	return "/etc/hosts"
}

// DefaultConfig renders the example config.toml written on first run.
func DefaultConfig(hostsPath string) string {
	return fmt.Sprintf(`hosts_path = '%s'

# Each key under [ssid] is a network name, matched exactly.
# A network with an empty value leaves the hosts file untouched.
# Networks that are not listed remove the managed block.
[ssid]
example = """
    # Redirect requests to example.com to 192.168.1.1.
    192.168.1.1 example.com

    # Redirect requests to sub.example.com to 192.168.1.2.
    192.168.1.2 sub.example.com
"""
`, hostsPath)
}
