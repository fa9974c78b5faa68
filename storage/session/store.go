package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/hsannu/connect/core/user"
)

// FileStore persists the logged-in User as JSON in a file readable by its owner only.
type FileStore struct {
	path string
	mu   sync.Mutex
}

var _ user.Store = (*FileStore)(nil) // interface compliance check

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (fs *FileStore) Path() string {
	return fs.path
}

func (fs *FileStore) Load() (user.User, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return user.User{}, user.ErrNoSession
		}
		return user.User{}, errors.Wrap(err, "reading session file")
	}

	var usr user.User
	if err = json.Unmarshal(data, &usr); err != nil {
		return user.User{}, errors.Wrap(err, "decoding session file")
	}
	if !usr.Resolvable() {
		return user.User{}, user.ErrNoSession
	}
	return usr, nil
}

// Save writes usr atomically (temp file + rename).
func (fs *FileStore) Save(usr user.User) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := json.MarshalIndent(usr, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding session")
	}
	dir := filepath.Dir(fs.path)
	if err = os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "creating session directory")
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return errors.Wrap(err, "creating session file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "writing session file")
	}
	if err = tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "writing session file")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "writing session file")
	}
	return errors.Wrap(os.Rename(tmp.Name(), fs.path), "writing session file")
}

func (fs *FileStore) Clear() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(fs.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing session file")
	}
	return nil
}

// MemoryStore keeps the User in memory; used by tests and one-shot commands.
type MemoryStore struct {
	mu  sync.Mutex
	usr *user.User
}

var _ user.Store = (*MemoryStore)(nil) // interface compliance check

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (ms *MemoryStore) Load() (user.User, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.usr == nil || !ms.usr.Resolvable() {
		return user.User{}, user.ErrNoSession
	}
	return *ms.usr, nil
}

func (ms *MemoryStore) Save(usr user.User) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.usr = &usr
	return nil
}

func (ms *MemoryStore) Clear() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.usr = nil
	return nil
}
