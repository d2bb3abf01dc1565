package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const metaDir = ".meta"

// LocalStorage implements Storage using the local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local filesystem storage
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(abs, metaDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{basePath: abs}, nil
}

// Put writes the content to a temporary file in the storage directory and
// renames it over the previous copy.
func (s *LocalStorage) Put(ctx context.Context, name, contentType, sourceURL string, r io.Reader) (*FileInfo, error) {
	safeName := sanitizeFilename(name)
	if safeName == "" {
		return nil, fmt.Errorf("invalid document name %q", name)
	}

	tmp, err := os.CreateTemp(s.basePath, "."+safeName+".*.part")
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hash), &ctxReader{ctx: ctx, r: r})
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	filePath := filepath.Join(s.basePath, safeName)
	if err := os.Rename(tmpPath, filePath); err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	info := &FileInfo{
		ID:          uuid.New(),
		Name:        safeName,
		Size:        size,
		ContentType: contentType,
		SHA256:      hex.EncodeToString(hash.Sum(nil)),
		SourceURL:   sourceURL,
		Path:        filePath,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.saveMetadata(info); err != nil {
		return nil, err
	}

	return info, nil
}

// Stat returns metadata for a stored document. A file copied into the
// directory by hand has no sidecar; its metadata is computed on the fly.
func (s *LocalStorage) Stat(ctx context.Context, name string) (*FileInfo, error) {
	safeName := sanitizeFilename(name)
	filePath := filepath.Join(s.basePath, safeName)

	st, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	data, err := os.ReadFile(s.metaPath(safeName))
	if err == nil {
		var info FileInfo
		if err := json.Unmarshal(data, &info); err != nil {
			return nil, fmt.Errorf("failed to parse metadata: %w", err)
		}
		if info.Size == st.Size() {
			info.Path = filePath
			return &info, nil
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	sum, err := fileSHA256(filePath)
	if err != nil {
		return nil, err
	}
	return &FileInfo{
		ID:        uuid.New(),
		Name:      safeName,
		Size:      st.Size(),
		SHA256:    sum,
		Path:      filePath,
		CreatedAt: st.ModTime().UTC(),
	}, nil
}

func (s *LocalStorage) metaPath(name string) string {
	return filepath.Join(s.basePath, metaDir, name+".json")
}

// saveMetadata saves document metadata to a JSON sidecar
func (s *LocalStorage) saveMetadata(info *FileInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.WriteFile(s.metaPath(info.Name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	return nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
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

// sanitizeFilename removes unsafe characters from filenames
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		"..", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return strings.TrimLeft(replacer.Replace(name), ".")
}
