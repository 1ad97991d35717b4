package media

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrEmptyObject   = errors.New("media: empty object")
	ErrInvalidKey    = errors.New("media: invalid key")
	ErrObjectMissing = errors.New("media: object not found")
)

// Object - сохраненный файл
type Object struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// LocalStore хранит файлы на диске в каталоге <dir>/<ownerID>/<uuid><ext>
// и отдает их по <baseURL>/<ownerID>/<uuid><ext>
type LocalStore struct {
	dir     string
	baseURL string
}

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media dir: %w", err)
	}
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (s *LocalStore) Dir() string {
	return s.dir
}

// Upload сохраняет содержимое для владельца (инцидент или снимок)
func (s *LocalStore) Upload(ctx context.Context, ownerID uuid.UUID, data []byte, contentType string) (*Object, error) {
	if len(data) == 0 {
		return nil, ErrEmptyObject
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := path.Join(ownerID.String(), uuid.NewString()+extensionFor(contentType))
	full := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media owner dir: %w", err)
	}

	// пишем во временный файл и переименовываем, чтобы не отдать наполовину записанный объект
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write media object: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("failed to commit media object: %w", err)
	}

	return &Object{
		Key:         key,
		URL:         s.baseURL + "/" + key,
		ContentType: contentType,
		Size:        len(data),
	}, nil
}

// Read читает объект по ключу, полученному из Upload
func (s *LocalStore) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := path.Clean("/" + key)[1:]
	if clean == "" || clean != key {
		return nil, ErrInvalidKey
	}
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.FromSlash(clean)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrObjectMissing
		}
		return nil, fmt.Errorf("failed to read media object: %w", err)
	}
	return data, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
