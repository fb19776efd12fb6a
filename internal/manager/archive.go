package manager

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"mlxd/internal/common/fsutil"
	"mlxd/pkg/types"
)

// ExportArchive writes the named artifact as a zip archive to w. Every
// entry is prefixed with the artifact name so the archive unpacks into
// a single directory.
func (m *Manager) ExportArchive(ctx context.Context, name string, w io.Writer) error {
	art, ok := m.cfg.Registry.Lookup(name)
	if !ok {
		return ErrModelNotFound("model not found: " + name)
	}

	zw := zip.NewWriter(w)
	root := art.Path
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		entry, err := zw.Create(filepath.ToSlash(filepath.Join(art.Name, rel)))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(entry, f)
		return err
	})
	if err != nil {
		_ = zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	m.log.Info().Str("model", art.Name).Msg("artifact exported")
	m.publisher.Publish(Event{Name: "archive_export", Model: art.Name})
	return nil
}

// ImportArchive installs a model artifact from the zip stream r into the
// models directory. The archive must unpack to a single top-level
// directory that looks like a converted model; the directory name
// becomes the artifact name.
func (m *Manager) ImportArchive(ctx context.Context, r io.Reader) (types.Artifact, error) {
	var art types.Artifact

	// zip needs random access; spool the upload to a temp file first.
	tmp, err := os.CreateTemp("", "mlxd-import-*.zip")
	if err != nil {
		return art, err
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()
	size, err := io.Copy(tmp, r)
	if err != nil {
		return art, fmt.Errorf("spool upload: %w", err)
	}
	zr, err := zip.NewReader(tmp, size)
	if err != nil {
		return art, ErrInvalidRequest("uploaded file is not a valid zip archive")
	}

	name, err := archiveRootDir(zr)
	if err != nil {
		return art, err
	}
	outDir := m.cfg.Registry.Dir()
	outputPath := filepath.Join(outDir, name)
	if fsutil.PathExists(outputPath) {
		return art, alreadyExistsError{path: outputPath}
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return art, fmt.Errorf("create models dir: %w", err)
	}

	if err := extractArchive(ctx, zr, outDir); err != nil {
		_ = os.RemoveAll(outputPath)
		return art, err
	}

	if err := m.cfg.Registry.Refresh(); err != nil {
		m.log.Warn().Err(err).Msg("registry refresh after import failed")
	}
	art, ok := m.cfg.Registry.Lookup(name)
	if !ok {
		_ = os.RemoveAll(outputPath)
		return types.Artifact{}, ErrInvalidRequest("archive does not contain a model artifact (no config.json or weights)")
	}

	m.log.Info().Str("model", name).Str("size", art.Size).Msg("artifact imported")
	m.publisher.Publish(Event{Name: "archive_import", Model: name, Fields: map[string]any{
		"size_bytes": art.SizeBytes,
	}})
	return art, nil
}

// archiveRootDir returns the single top-level directory all entries
// share, rejecting flat or multi-root archives and path traversal.
func archiveRootDir(zr *zip.Reader) (string, error) {
	root := ""
	for _, f := range zr.File {
		clean := filepath.ToSlash(f.Name)
		if strings.HasPrefix(clean, "/") || strings.Contains(clean, "..") {
			return "", ErrInvalidRequest("archive contains an unsafe path: " + f.Name)
		}
		top, _, found := strings.Cut(clean, "/")
		if !found || top == "" {
			return "", ErrInvalidRequest("archive must contain a single model directory, found top-level file: " + f.Name)
		}
		if root == "" {
			root = top
		} else if top != root {
			return "", ErrInvalidRequest("archive must contain a single model directory, found several")
		}
	}
	if root == "" {
		return "", ErrInvalidRequest("archive is empty")
	}
	return root, nil
}

// extractArchive unpacks zr under destDir. Entry paths were validated by
// archiveRootDir.
func extractArchive(ctx context.Context, zr *zip.Reader, destDir string) error {
	for _, f := range zr.File {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		target := filepath.Join(destDir, filepath.FromSlash(f.Name))
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		src, err := f.Open()
		if err != nil {
			return err
		}
		dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			src.Close()
			return err
		}
		_, err = io.Copy(dst, src)
		src.Close()
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}
	return nil
}
