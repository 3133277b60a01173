// Package localfs keeps artefacts as files under a root directory, one
// file per object key.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"model-artefact-registry/internal/core/domain"
	output "model-artefact-registry/internal/core/ports/output"
)

type ArtefactStore struct {
	root string
}

var _ output.ArtefactStore = (*ArtefactStore)(nil)

func NewArtefactStore(root string) (*ArtefactStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, classify("create artefact root", err)
	}
	return &ArtefactStore{root: root}, nil
}

func (s *ArtefactStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || clean == ".." || filepath.IsAbs(clean) || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: artefact key %q", domain.ErrInvalidModelID, key)
	}
	return filepath.Join(s.root, clean), nil
}

// Put writes body to a temporary file next to the destination and renames
// it into place, so readers never see a partial artefact.
func (s *ArtefactStore) Put(ctx context.Context, key string, body io.Reader) (string, error) {
	dest, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", classify("create artefact directory", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return "", classify("create temp file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: body}); err != nil {
		tmp.Close()
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", classify("write artefact", err)
	}
	if err := tmp.Close(); err != nil {
		return "", classify("close artefact", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", classify("rename artefact", err)
	}
	return key, nil
}

func (s *ArtefactStore) Get(ctx context.Context, key string) (*domain.Artefact, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		return nil, classify("open artefact", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, classify("stat artefact", err)
	}
	return &domain.Artefact{Key: key, Size: info.Size(), Body: f}, nil
}

func (s *ArtefactStore) Ping(ctx context.Context) error {
	info, err := os.Stat(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat artefact root: %w: %w", domain.ErrStorageUnavailable, err)
	}
	if err != nil {
		return classify("stat artefact root", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrStorageUnavailable, s.root)
	}
	return nil
}

// ctxReader stops a copy once the context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func classify(op string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%s: %w: %w", op, domain.ErrArtefactNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%s: %w: %w", op, domain.ErrAccessDenied, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
	}
}
