package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps accounts as a JSON array in a single file, the layout of a
// users.json account list. Writes go through a temp file and rename, and one
// mutex serializes every mutation within the process.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// OpenFile returns a FileStore at path, creating an empty list when the file
// does not exist. An unreadable or malformed file is an error.
func OpenFile(path string) (*FileStore, error) {
	s := &FileStore{path: path}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := s.write(nil); err != nil {
			return nil, err
		}
	}
	if _, err := s.read(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) List(ctx context.Context) ([]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) Get(ctx context.Context, email string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.read()
	if err != nil {
		return Account{}, err
	}
	for _, a := range all {
		if a.Email == email {
			return a, nil
		}
	}
	return Account{}, ErrNotFound
}

func (s *FileStore) Create(ctx context.Context, a Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.read()
	if err != nil {
		return err
	}
	for _, existing := range all {
		if existing.Email == a.Email {
			return ErrEmailTaken
		}
	}
	return s.write(append(all, a))
}

func (s *FileStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.read()
	return err
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) read() ([]Account, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read account file: %w", err)
	}
	var all []Account
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("decode account file %s: %w", s.path, err)
	}
	return all, nil
}

func (s *FileStore) write(all []Account) error {
	if all == nil {
		all = []Account{}
	}
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("encode accounts: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("write account file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write account file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync account file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write account file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("chmod account file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace account file: %w", err)
	}
	return nil
}
