package config

import (
	"log"
	"os"
	"reflect"
	"sync"

	"github.com/goccy/go-yaml"
)

// Settings keys understood by the device profile.
const (
	KeyBPM       = "bpm"
	KeySaveForQA = "save_for_qa"
)

// Settings is the runtime settings source backed by a YAML device profile.
// It serves the compression rate and the save-photo toggle, and notifies
// subscribers when a value changes. A missing or malformed profile is not
// fatal; callers fall back to their defaults.
type Settings struct {
	path string

	mu     sync.Mutex
	values map[string]any
	subs   map[string]map[int]func(any)
	nextID int
}

// LoadSettings reads the profile at path. A missing file yields an empty
// settings source.
func LoadSettings(path string) *Settings {
	s := &Settings{
		path:   path,
		values: make(map[string]any),
		subs:   make(map[string]map[int]func(any)),
	}
	if err := s.Reload(); err != nil {
		log.Printf("device profile %s not loaded: %v", path, err)
	}
	return s
}

// Reload re-reads the profile file and fires change callbacks for any key
// whose value differs.
func (s *Settings) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return err
	}
	for k, v := range parsed {
		s.Set(k, v)
	}
	return nil
}

// GetInt returns the integer value for key, or def when absent or not an
// integer.
func (s *Settings) GetInt(key string, def int) int {
	s.mu.Lock()
	v, ok := s.values[key]
	s.mu.Unlock()
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		return int(n)
	}
	return def
}

// GetBool returns the boolean value for key, or def when absent or not a
// boolean.
func (s *Settings) GetBool(key string, def bool) bool {
	s.mu.Lock()
	v, ok := s.values[key]
	s.mu.Unlock()
	if !ok {
		return def
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}

// Set stores a value and notifies subscribers if it changed.
func (s *Settings) Set(key string, v any) {
	s.mu.Lock()
	old, had := s.values[key]
	s.values[key] = v
	var fns []func(any)
	// DeepEqual, not ==: profile values may be nested YAML mappings, which
	// are not comparable with the equality operator.
	if !had || !reflect.DeepEqual(old, v) {
		for _, fn := range s.subs[key] {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}

// OnChange registers a callback for changes to key and returns an
// unsubscribe function. Sessions must unsubscribe on disconnect.
func (s *Settings) OnChange(key string, fn func(v any)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	if s.subs[key] == nil {
		s.subs[key] = make(map[int]func(any))
	}
	s.subs[key][id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs[key], id)
		s.mu.Unlock()
	}
}
