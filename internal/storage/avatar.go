// Package storage keeps uploaded avatar files.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/xid"
)

// AvatarStore persists avatar images and hands back the public URL they
// are served from.
type AvatarStore interface {
	// Save writes r under a fresh name ending in ext (".png", ...) and
	// returns its public URL.
	Save(ctx context.Context, ext string, r io.Reader) (string, error)
	// Delete removes the file behind a URL previously returned by Save.
	// URLs the store did not issue are ignored.
	Delete(ctx context.Context, url string) error
}

// LocalAvatarStore writes files into Dir; they are served by a static
// file route mounted at URLPrefix.
type LocalAvatarStore struct {
	dir       string
	urlPrefix string
}

var _ AvatarStore = (*LocalAvatarStore)(nil)

// NewLocalAvatarStore creates dir if needed.
func NewLocalAvatarStore(dir, urlPrefix string) (*LocalAvatarStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating upload dir: %w", err)
	}
	return &LocalAvatarStore{
		dir:       dir,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
	}, nil
}

// Dir is the directory files are written to.
func (s *LocalAvatarStore) Dir() string { return s.dir }

func (s *LocalAvatarStore) Save(ctx context.Context, ext string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := "avatar-" + xid.New().String() + ext
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("storage: creating %s: %w", name, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("storage: writing %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("storage: closing %s: %w", name, err)
	}

	return path.Join(s.urlPrefix, name), nil
}

func (s *LocalAvatarStore) Delete(_ context.Context, url string) error {
	name, ok := strings.CutPrefix(url, s.urlPrefix+"/")
	// Only bare file names we issued; anything with a separator is foreign.
	if !ok || name == "" || strings.ContainsAny(name, `/\`) || name == ".." {
		return nil
	}

	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: removing %s: %w", name, err)
	}
	return nil
}
