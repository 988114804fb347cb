// Package registry is the filesystem-backed record of locally running
// sessions. Each bridge writes one JSON file for itself under an owner-only
// directory and removes it on graceful shutdown. Removal is best-effort, so
// readers tolerate stale and corrupt records. A hub reads sibling records
// only to extract {port, token} for ticket proxying; it never writes them.
package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"termshare/internal/constants"
	"termshare/internal/types"
)

type Registry struct {
	dir string
}

func New() (*Registry, error) {
	dir, err := registryDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &Registry{dir: dir}, nil
}

func registryDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", constants.AppName, constants.RegistryDir), nil
	default:
		return filepath.Join(home, ".local", "share", constants.AppName, constants.RegistryDir), nil
	}
}

// NewAt returns a registry rooted at an explicit directory.
func NewAt(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &Registry{dir: dir}, nil
}

func (r *Registry) path(id string) string {
	return filepath.Join(r.dir, id+".json")
}

// Write persists one session record with owner-only permissions.
func (r *Registry) Write(rec types.SessionRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.path(rec.ID), data, 0600)
}

// Remove deletes a record and reports whether it existed.
func (r *Registry) Remove(id string) bool {
	return os.Remove(r.path(id)) == nil
}

// List returns every readable record. Corrupt or unreadable files are
// skipped: stale leftovers from crashed sessions are expected.
func (r *Registry) List() []types.SessionRecord {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil
	}

	var records []types.SessionRecord
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.dir, entry.Name()))
		if err != nil {
			continue
		}
		var rec types.SessionRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records
}

// FindByPort resolves a local port to its session record.
func (r *Registry) FindByPort(port int) (types.SessionRecord, bool) {
	for _, rec := range r.List() {
		if rec.Port == port {
			return rec, true
		}
	}
	return types.SessionRecord{}, false
}
