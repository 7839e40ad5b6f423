// Package scene implements the Scene Store: loads scene definitions
// from a directory at startup and on demand, validates them against
// the expected shape, and serves them to the Mixer by id.
package scene

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// SourceKind tags what a Slot.Source names.
type SourceKind string

const (
	SourceCamera  SourceKind = "camera"
	SourceOverlay SourceKind = "overlay"
	SourceReveal  SourceKind = "reveal"
)

// Crop is an optional normalized crop rectangle within a source.
type Crop struct {
	X, Y, W, H float64
}

// Slot places one source within a scene's output frame. X/Y/W/H are
// normalized to [0,1] of the output resolution.
type Slot struct {
	Source string     `json:"source"`
	Kind   SourceKind `json:"kind"`
	X      float64    `json:"x"`
	Y      float64    `json:"y"`
	W      float64    `json:"w"`
	H      float64    `json:"h"`
	Z      int        `json:"z"`
	Alpha  float64    `json:"alpha"`
	Crop   *Crop      `json:"crop,omitempty"`
}

// Scene is a declarative layout: output resolution plus an ordered
// slot list. Immutable once loaded.
type Scene struct {
	ID            string  `json:"id"`
	OutputWidth   int     `json:"output_width"`
	OutputHeight  int     `json:"output_height"`
	Slots         []Slot  `json:"slots"`
}

func (s Scene) validate() error {
	if s.ID == "" {
		return fmt.Errorf("scene: missing id")
	}
	if s.OutputWidth <= 0 || s.OutputHeight <= 0 {
		return fmt.Errorf("scene %s: invalid output resolution", s.ID)
	}
	for i, slot := range s.Slots {
		if slot.Source == "" {
			return fmt.Errorf("scene %s: slot %d missing source", s.ID, i)
		}
		if slot.Alpha < 0 || slot.Alpha > 1 {
			return fmt.Errorf("scene %s: slot %d alpha out of [0,1]", s.ID, i)
		}
		if slot.X < 0 || slot.Y < 0 || slot.W <= 0 || slot.H <= 0 {
			return fmt.Errorf("scene %s: slot %d has invalid placement", s.ID, i)
		}
	}
	return nil
}

// Store holds the currently-loaded set of scenes, keyed by id, behind
// a single lock. Reload replaces the set atomically.
type Store struct {
	mu     sync.RWMutex
	scenes map[string]Scene
	dir    string
	log    zerolog.Logger
}

// New constructs a Store and performs an initial load from dir.
func New(dir string, log zerolog.Logger) (*Store, error) {
	s := &Store{scenes: make(map[string]Scene), dir: dir, log: log}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads every scene file in the store's directory, skipping
// hidden/metadata files silently, and rejecting malformed ones with a
// logged warning rather than failing the whole reload.
func (s *Store) Reload() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("scene: reading scenes dir %s: %w", s.dir, err)
	}

	loaded := make(map[string]Scene, len(entries))
	for _, ent := range entries {
		if ent.IsDir() || strings.HasPrefix(ent.Name(), ".") {
			continue
		}
		if !strings.HasSuffix(ent.Name(), ".json") {
			continue
		}

		path := filepath.Join(s.dir, ent.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			s.log.Warn().Err(err).Str("file", path).Msg("skipping unreadable scene file")
			continue
		}

		var sc Scene
		if err := json.Unmarshal(data, &sc); err != nil {
			s.log.Warn().Err(err).Str("file", path).Msg("skipping malformed scene file")
			continue
		}
		if err := sc.validate(); err != nil {
			s.log.Warn().Err(err).Str("file", path).Msg("skipping invalid scene")
			continue
		}
		loaded[sc.ID] = sc
	}

	s.mu.Lock()
	s.scenes = loaded
	s.mu.Unlock()
	return nil
}

// List returns every currently-loaded scene.
func (s *Store) List() []Scene {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Scene, 0, len(s.scenes))
	for _, sc := range s.scenes {
		out = append(out, sc)
	}
	return out
}

// Get returns a scene by id.
func (s *Store) Get(id string) (Scene, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scenes[id]
	return sc, ok
}

// Watch starts an fsnotify watch on the store's directory and reloads
// on any create/write/remove/rename event, until stop is closed. Errors
// from the watcher are logged, not returned, since a stale scene set
// is preferable to crashing the process.
func (s *Store) Watch(stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("scene: creating watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("scene: watching %s: %w", s.dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-stop:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
					if err := s.Reload(); err != nil {
						s.log.Warn().Err(err).Msg("scene reload after fsnotify event failed")
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.log.Warn().Err(err).Msg("scene watcher error")
			}
		}
	}()

	return nil
}
