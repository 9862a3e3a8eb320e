// Package persistence provides the flat-file stores and the processed-mail
// history database.
package persistence

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"assistant_server/core/domain"
	"assistant_server/pkg/apperr"
)

// =============================================================================
// Flat-File Stores
// =============================================================================
//
// Both stores persist their entire map to a single binary file on every
// mutation. The files are the source of truth across restarts: the poller
// writes a snapshot, the process may die, and the callback loop of the next
// process must still resolve the button press.

// fileStore is the shared write-through map-to-file mechanism.
type fileStore[V any] struct {
	mu   sync.Mutex
	path string
	data map[string]V
}

func newFileStore[V any](path string) (*fileStore[V], error) {
	s := &fileStore[V]{
		path: path,
		data: make(map[string]V),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load replaces the in-memory map from the backing file. A missing file is a
// fresh start, not an error. A corrupt file is also a fresh start: losing
// stale notification state beats refusing to boot.
func (s *fileStore[V]) load() error {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.data = make(map[string]V)
			return nil
		}
		return apperr.ConfigError("filestore", fmt.Sprintf("cannot open %s", s.path)).WithError(err)
	}
	defer f.Close()

	decoded := make(map[string]V)
	if err := gob.NewDecoder(f).Decode(&decoded); err != nil {
		s.data = make(map[string]V)
		return nil
	}
	s.data = decoded
	return nil
}

// flush writes the whole map to the backing file. Must be called with the
// lock held. The write goes through a temp file and rename so a crash mid-
// write never leaves a truncated store.
func (s *fileStore[V]) flush() error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return apperr.Internal("failed to create temp store file", err)
	}
	tmpName := tmp.Name()

	if err := gob.NewEncoder(tmp).Encode(s.data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperr.Internal("failed to encode store", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperr.Internal("failed to close temp store file", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return apperr.Internal("failed to replace store file", err)
	}
	return nil
}

func (s *fileStore[V]) put(key string, value V) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return s.flush()
}

func (s *fileStore[V]) get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *fileStore[V]) delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	return s.flush()
}

func (s *fileStore[V]) reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *fileStore[V]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// -----------------------------------------------------------------------------
// Snapshot Store
// -----------------------------------------------------------------------------

// FileSnapshotStore implements out.SnapshotStore on a gob flat file. It holds
// the full message snapshots bridging notification dispatch and callback
// handling.
type FileSnapshotStore struct {
	store *fileStore[*domain.Message]
}

// NewFileSnapshotStore opens (or creates) the snapshot file.
func NewFileSnapshotStore(path string) (*FileSnapshotStore, error) {
	s, err := newFileStore[*domain.Message](path)
	if err != nil {
		return nil, err
	}
	return &FileSnapshotStore{store: s}, nil
}

func (s *FileSnapshotStore) Put(key string, msg *domain.Message) error {
	return s.store.put(key, msg)
}

func (s *FileSnapshotStore) Get(key string) (*domain.Message, bool) {
	return s.store.get(key)
}

func (s *FileSnapshotStore) Delete(key string) error {
	return s.store.delete(key)
}

func (s *FileSnapshotStore) Reload() error {
	return s.store.reload()
}

func (s *FileSnapshotStore) Len() int {
	return s.store.len()
}

// -----------------------------------------------------------------------------
// Draft Store
// -----------------------------------------------------------------------------

// FileDraftStore implements out.DraftStore on a gob flat file. It holds
// generated reply drafts awaiting send confirmation.
type FileDraftStore struct {
	store *fileStore[string]
}

// NewFileDraftStore opens (or creates) the draft file.
func NewFileDraftStore(path string) (*FileDraftStore, error) {
	s, err := newFileStore[string](path)
	if err != nil {
		return nil, err
	}
	return &FileDraftStore{store: s}, nil
}

func (s *FileDraftStore) Put(key string, draft string) error {
	return s.store.put(key, draft)
}

func (s *FileDraftStore) Get(key string) (string, bool) {
	return s.store.get(key)
}

func (s *FileDraftStore) Delete(key string) error {
	return s.store.delete(key)
}

func (s *FileDraftStore) Reload() error {
	return s.store.reload()
}

func (s *FileDraftStore) Len() int {
	return s.store.len()
}
