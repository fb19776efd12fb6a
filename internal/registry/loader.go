package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"mlxd/internal/common/fsutil"
	"mlxd/pkg/types"
)

// Registry maintains a snapshot of converted artifacts found in one
// models directory. Refresh rescans the directory; readers get copies.
type Registry struct {
	dir string

	mu        sync.RWMutex
	artifacts []types.Artifact
}

// New builds a Registry rooted at dir ('~' is expanded) and performs an
// initial scan. A missing directory is not an error: it simply yields an
// empty listing until the first conversion creates it.
func New(dir string) (*Registry, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	r := &Registry{dir: abs}
	if err := r.Refresh(); err != nil {
		return nil, err
	}
	return r, nil
}

// Dir returns the absolute models directory.
func (r *Registry) Dir() string { return r.dir }

// Refresh rescans the models directory and replaces the snapshot.
func (r *Registry) Refresh() error {
	arts, err := ScanDir(r.dir)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.artifacts = arts
	r.mu.Unlock()
	return nil
}

// Artifacts returns a copy of the current snapshot.
func (r *Registry) Artifacts() []types.Artifact {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Artifact, len(r.artifacts))
	copy(out, r.artifacts)
	return out
}

// Lookup resolves an artifact by directory name.
func (r *Registry) Lookup(name string) (types.Artifact, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.artifacts {
		if a.Name == name {
			return a, true
		}
	}
	return types.Artifact{}, false
}

// ScanDir enumerates subdirectories of dir that look like MLX artifacts
// and reports each with its total on-disk size. Entries that are not
// directories, or directories without a config.json or weight files,
// are skipped.
func ScanDir(dir string) ([]types.Artifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var arts []types.Artifact
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if !looksLikeArtifact(p) {
			continue
		}
		size, err := fsutil.DirSize(p)
		if err != nil {
			// Directory vanished mid-scan (e.g. conversion cleanup).
			continue
		}
		arts = append(arts, types.Artifact{
			Name:      e.Name(),
			Path:      p,
			SizeBytes: size,
			Size:      fsutil.FormatSize(size),
		})
	}
	return arts, nil
}

// looksLikeArtifact reports whether dir holds a converted model: a
// config.json, or safetensors/npz weight files.
func looksLikeArtifact(dir string) bool {
	if fsutil.PathExists(filepath.Join(dir, "config.json")) {
		return true
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		if strings.HasSuffix(name, ".safetensors") || strings.HasSuffix(name, ".npz") {
			return true
		}
	}
	return false
}
