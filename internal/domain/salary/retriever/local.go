package retriever

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// LocalSource serves a PDF that already exists on disk, for runs pointed at
// a file instead of the published URL.
type LocalSource struct {
	path string
}

// NewLocalSource creates a source reading path.
func NewLocalSource(path string) *LocalSource {
	return &LocalSource{path: path}
}

// Fetch describes the local file. A missing or unreadable file is a
// retrieval failure.
func (s *LocalSource) Fetch(ctx context.Context) (Document, error) {
	abs, err := filepath.Abs(s.path)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %s: %v", ErrRetrieval, s.path, err)
	}

	f, err := os.Open(abs)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}
	if st.IsDir() {
		return Document{}, fmt.Errorf("%w: %s is a directory", ErrRetrieval, abs)
	}

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return Document{}, fmt.Errorf("%w: read %s: %v", ErrRetrieval, abs, err)
	}

	return Document{
		Path:        abs,
		SourceURL:   "file://" + filepath.ToSlash(abs),
		Size:        st.Size(),
		SHA256:      hex.EncodeToString(hash.Sum(nil)),
		RetrievedAt: time.Now().UTC(),
		FromCache:   true,
	}, nil
}
