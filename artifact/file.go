package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// FileStoreOptions configures a FileStore.
type FileStoreOptions struct {
	// Shared stores every session's artifacts in the root directory itself
	// instead of one sub-directory per session.
	Shared bool
	// FileMode is applied to written files.
	FileMode os.FileMode
}

// FileStore persists artifacts as files below Root. Writes go to a temporary
// file first and are renamed into place.
type FileStore struct {
	root string
	opts FileStoreOptions
}

// NewFileStore creates the root directory if needed.
func NewFileStore(root string, optFns ...func(o *FileStoreOptions)) (*FileStore, error) {
	opts := FileStoreOptions{FileMode: 0o644}
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact root %s: %w", root, err)
	}

	return &FileStore{root: root, opts: opts}, nil
}

// Root returns the base directory.
func (s *FileStore) Root() string { return s.root }

// Path returns the file path an artifact is stored at.
func (s *FileStore) Path(sessionID, artifactID string) (string, error) {
	if err := validID(artifactID); err != nil {
		return "", err
	}

	return filepath.Join(s.dir(sessionID), artifactID), nil
}

func (s *FileStore) dir(sessionID string) string {
	if s.opts.Shared || sessionID == "" {
		return s.root
	}

	return filepath.Join(s.root, filepath.Base(sessionID))
}

// Save writes (or overwrites) an artifact.
func (s *FileStore) Save(sessionID, artifactID string, data []byte) error {
	path, err := s.Path(sessionID, artifactID)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".artifact-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write artifact: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}

	if err := os.Chmod(tmp.Name(), s.opts.FileMode); err != nil {
		return fmt.Errorf("chmod artifact: %w", err)
	}

	return os.Rename(tmp.Name(), path)
}

// Get reads an artifact or returns ErrNotFound.
func (s *FileStore) Get(sessionID, artifactID string) ([]byte, error) {
	path, err := s.Path(sessionID, artifactID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}

	return data, err
}

// List returns the sorted artifact ids of a session.
func (s *FileStore) List(sessionID string) ([]string, error) {
	entries, err := os.ReadDir(s.dir(sessionID))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}

	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(entries))

	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}

		ids = append(ids, e.Name())
	}

	slices.Sort(ids)

	return ids, nil
}

// Delete removes an artifact or returns ErrNotFound.
func (s *FileStore) Delete(sessionID, artifactID string) error {
	path, err := s.Path(sessionID, artifactID)
	if err != nil {
		return err
	}

	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}

	return err
}

func validID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	return nil
}
