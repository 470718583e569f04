package blob

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"gitlab.com/yelinaung/stokvel-bot/internal/logger"
)

const fileRefPrefix = "file:"

// FileStore writes blobs under a directory and references them as "file:<name>".
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("blob directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Put writes data to a new uniquely named file.
func (s *FileStore) Put(ctx context.Context, data []byte, meta Metadata) (string, error) {
	if err := check(ctx, data); err != nil {
		return "", err
	}

	name := uuid.New().String() + extension(data, meta)
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}

	logger.Log.Debug().Str("blob", name).Int("bytes", len(data)).Msg("Stored proof of payment")
	return fileRefPrefix + name, nil
}

// Get reads back a blob written by Put.
func (s *FileStore) Get(ctx context.Context, ref string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	name, ok := strings.CutPrefix(ref, fileRefPrefix)
	if !ok || name == "" || name != filepath.Base(name) {
		return nil, "", fmt.Errorf("invalid file reference %q", ref)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read blob: %w", err)
	}
	return data, contentType(data, Metadata{}), nil
}

func extension(data []byte, meta Metadata) string {
	if ext := filepath.Ext(meta.Filename); ext != "" && len(ext) <= 5 {
		return strings.ToLower(ext)
	}
	exts, err := mime.ExtensionsByType(contentType(data, meta))
	if err != nil || len(exts) == 0 {
		return ".bin"
	}
	return exts[0]
}
