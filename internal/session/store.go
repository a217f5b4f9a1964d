// Package session maps user identifiers to on-disk session blob paths.
//
// The store never reads or writes blob contents; the platform client owns
// that. It only derives a deterministic file name per user, ensures the
// directory exists, and removes blobs that are known to be corrupt.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	filePrefix = "session_"
	fileSuffix = ".json"
)

// safeName matches user ids that can be used in a file name verbatim.
var safeName = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Blob describes one session file found on disk.
type Blob struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// Store resolves session blob locations under a single directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created lazily.
func NewStore(dir string) *Store {
	if strings.TrimSpace(dir) == "" {
		dir = "sessions"
	}
	return &Store{dir: dir}
}

// Dir returns the root directory.
func (s *Store) Dir() string { return s.dir }

// FileName returns the deterministic blob file name for userID. Ids that are
// not file-name safe are replaced by "h." and a sha256 prefix; the dot keeps
// hashed names disjoint from verbatim ones.
func FileName(userID string) string {
	name := userID
	if !safeName.MatchString(userID) {
		sum := sha256.Sum256([]byte(userID))
		name = "h." + hex.EncodeToString(sum[:12])
	}
	return filePrefix + name + fileSuffix
}

// Path returns the blob path for userID, creating the directory if needed.
func (s *Store) Path(userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("session: empty user id")
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return "", fmt.Errorf("session: create dir: %w", err)
	}
	return filepath.Join(s.dir, FileName(userID)), nil
}

// Remove deletes the blob for userID. A missing blob is not an error.
func (s *Store) Remove(userID string) error {
	err := os.Remove(filepath.Join(s.dir, FileName(userID)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("session: remove: %w", err)
	}
	return nil
}

// RemoveBlob deletes a blob returned by List. A missing blob is not an error.
func (s *Store) RemoveBlob(b Blob) error {
	err := os.Remove(b.Path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("session: remove: %w", err)
	}
	return nil
}

// List returns the session blobs on disk sorted by name. A missing directory
// yields an empty list.
func (s *Store) List() ([]Blob, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: list: %w", err)
	}
	out := make([]Blob, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Blob{
			Name:    strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix),
			Path:    filepath.Join(s.dir, name),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
