package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore persists non-builtin tool registrations as one JSON file per
// tool id under a base directory.
type FileStore struct {
	baseDir string
}

// NewFileStore creates a FileStore rooted at baseDir.
func NewFileStore(baseDir string) *FileStore {
	return &FileStore{baseDir: baseDir}
}

func (fs *FileStore) path(id string) string {
	return filepath.Join(fs.baseDir, id+".json")
}

// Save atomically writes a registration using a temp file + rename.
func (fs *FileStore) Save(reg *Registration) error {
	if err := os.MkdirAll(fs.baseDir, 0o755); err != nil {
		return fmt.Errorf("create tools dir: %w", err)
	}

	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registration: %w", err)
	}

	path := fs.path(reg.Tool.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write registration tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename registration: %w", err)
	}
	return nil
}

// Delete removes the registration file for the given id.
func (fs *FileStore) Delete(id string) error {
	err := os.Remove(fs.path(id))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// LoadAll reads all persisted registrations. Corrupted files are skipped.
func (fs *FileStore) LoadAll() ([]*Registration, error) {
	entries, err := os.ReadDir(fs.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read tools dir: %w", err)
	}

	var result []*Registration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(fs.baseDir, entry.Name()))
		if err != nil {
			continue
		}
		var reg Registration
		if err := json.Unmarshal(data, &reg); err != nil {
			continue
		}
		if reg.Tool.ID == "" {
			continue
		}
		result = append(result, &reg)
	}
	return result, nil
}
