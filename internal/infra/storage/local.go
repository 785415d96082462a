package storage

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Local stores photos as files in a directory on the device.
type Local struct {
	root string
}

// NewLocal creates a Local store rooted at dir, creating it if needed.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Local{root: abs}, nil
}

// Save writes one photo. The key is used as the filename; path separators
// are rejected by construction since keys never contain them.
func (l *Local) Save(_ context.Context, key string, data []byte, _ string) error {
	return os.WriteFile(filepath.Join(l.root, filepath.Base(key)), data, 0o644)
}

// List returns stored photos, newest first.
func (l *Local) List() ([]PhotoInfo, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, err
	}
	var photos []PhotoInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		if !strings.HasSuffix(name, ".jpg") && !strings.HasSuffix(name, ".jpeg") && !strings.HasSuffix(name, ".png") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		photos = append(photos, PhotoInfo{Filename: e.Name(), Size: info.Size(), Created: info.ModTime()})
	}
	sort.Slice(photos, func(i, j int) bool { return photos[i].Created.After(photos[j].Created) })
	return photos, nil
}
