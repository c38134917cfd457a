package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// FilesystemBlobStore stores blobs under a local root directory. References
// are root-relative paths such as "artifacts/<uuid>_<filename>".
type FilesystemBlobStore struct {
	root string
	log  *logrus.Logger
}

// NewFilesystemBlobStore creates a filesystem-backed blob store
func NewFilesystemBlobStore(root string) (*FilesystemBlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob root: %w", err)
	}
	return &FilesystemBlobStore{
		root: root,
		log:  logrus.New(),
	}, nil
}

// SetLogger replaces the component logger
func (s *FilesystemBlobStore) SetLogger(log *logrus.Logger) {
	if log != nil {
		s.log = log
	}
}

// Put stores the content and returns its root-relative reference
func (s *FilesystemBlobStore) Put(ctx context.Context, folder, filename, contentType string, content io.Reader) (string, error) {
	if err := validFolder(folder); err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create folder %s: %w", folder, err)
	}

	name := uuid.NewString() + "_" + sanitizeFilename(filename)
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create blob file: %w", err)
	}

	written, err := io.Copy(f, content)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write blob: %w", err)
	}

	ref := folder + "/" + name
	s.log.WithFields(logrus.Fields{
		"ref":   ref,
		"bytes": written,
	}).Debug("stored blob")

	return ref, nil
}

// Get opens the content behind a reference
func (s *FilesystemBlobStore) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("blob %s does not exist", ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return f, nil
}

// Delete removes the content behind a reference
func (s *FilesystemBlobStore) Delete(ctx context.Context, ref string) error {
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

// resolve maps a reference to an absolute path, rejecting traversal
func (s *FilesystemBlobStore) resolve(ref string) (string, error) {
	clean := filepath.Clean("/" + ref)
	if strings.Contains(ref, "..") {
		return "", fmt.Errorf("invalid blob reference: %s", ref)
	}
	return filepath.Join(s.root, clean), nil
}

func validFolder(folder string) error {
	switch folder {
	case "logos", "artifacts":
		return nil
	default:
		return fmt.Errorf("unknown blob folder: %s", folder)
	}
}

// sanitizeFilename strips path separators from a client-supplied filename
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "blob"
	}
	return name
}
