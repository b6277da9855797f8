// AngelaMos | 2026
// store.go

package blob

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/carterperez-dev/member-portal/internal/config"
	"github.com/carterperez-dev/member-portal/internal/core"
)

type Blob struct {
	ID  string
	URL string
}

// Store keeps uploaded profile images. Release is best effort; callers
// log its failure and carry on.
type Store interface {
	Upload(ctx context.Context, data []byte) (Blob, error)
	Release(ctx context.Context, id string) error
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ImageExtension sniffs data and returns the file extension for a
// supported image type.
func ImageExtension(data []byte) (string, error) {
	if len(data) == 0 {
		return "", core.InvalidInput("image is required")
	}
	contentType := http.DetectContentType(data)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", core.InvalidInput(
			fmt.Sprintf("unsupported image type %q", contentType),
		)
	}
	return ext, nil
}

type LocalStore struct {
	dir     string
	baseURL string
}

func NewLocalStore(cfg config.BlobConfig) (*LocalStore, error) {
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &LocalStore{
		dir:     cfg.Dir,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}, nil
}

func (s *LocalStore) Upload(ctx context.Context, data []byte) (Blob, error) {
	ext, err := ImageExtension(data)
	if err != nil {
		return Blob{}, err
	}

	id := uuid.New().String() + ext
	//nolint:gosec // G306: uploaded images are served publicly
	if err := os.WriteFile(filepath.Join(s.dir, id), data, 0o644); err != nil {
		return Blob{}, fmt.Errorf("write blob: %w", err)
	}

	return Blob{ID: id, URL: s.baseURL + "/" + id}, nil
}

func (s *LocalStore) Release(ctx context.Context, id string) error {
	if id == "" || id != filepath.Base(id) {
		return fmt.Errorf("release blob %q: %w", id, core.ErrInvalidInput)
	}
	err := os.Remove(filepath.Join(s.dir, id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release blob: %w", err)
	}
	return nil
}

func (s *LocalStore) Dir() string {
	return s.dir
}

// Ping reports whether the upload directory is still usable.
func (s *LocalStore) Ping(ctx context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("stat blob dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("blob dir %s is not a directory", s.dir)
	}
	return nil
}

// MemoryStore records uploads in process. FailRelease makes Release
// return an error.
type MemoryStore struct {
	mu          sync.Mutex
	blobs       map[string][]byte
	released    []string
	FailRelease bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: map[string][]byte{}}
}

func (s *MemoryStore) Upload(ctx context.Context, data []byte) (Blob, error) {
	ext, err := ImageExtension(data)
	if err != nil {
		return Blob{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String() + ext
	s.blobs[id] = append([]byte(nil), data...)
	return Blob{ID: id, URL: "memory://" + id}, nil
}

func (s *MemoryStore) Release(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.released = append(s.released, id)
	if s.FailRelease {
		return errors.New("release blob: store unavailable")
	}
	delete(s.blobs, id)
	return nil
}

func (s *MemoryStore) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blobs[id]
	return ok
}

func (s *MemoryStore) Released() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.released...)
}
