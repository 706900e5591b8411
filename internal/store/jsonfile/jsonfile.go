package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vovakirdan/modchat-server/internal/store"
)

// FileStore implements store.Store as one JSON array file per collection.
// Each file is rewritten in full on every save.
type FileStore struct {
	dir   string
	locks map[string]*sync.Mutex
}

// New creates the data directory if needed and seeds every collection file with "[]".
func New(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &FileStore{
		dir: dir,
		locks: map[string]*sync.Mutex{
			store.CollectionBans:        {},
			store.CollectionBannedWords: {},
			store.CollectionMessages:    {},
		},
	}

	for name := range s.locks {
		path := s.path(name)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if err := os.WriteFile(path, []byte("[]"), 0o600); err != nil {
				return nil, fmt.Errorf("seed %s: %w", name, err)
			}
		}
	}

	return s, nil
}

// Close is a no-op; files are closed after every write.
func (s *FileStore) Close() error {
	return nil
}

// Path returns the file backing a collection.
func (s *FileStore) Path(collection string) string {
	return s.path(collection)
}

// LoadBans returns the persisted ban list.
func (s *FileStore) LoadBans(_ context.Context) ([]store.Ban, error) {
	var bans []store.Ban
	if err := s.read(store.CollectionBans, &bans); err != nil {
		return nil, err
	}
	return bans, nil
}

// SaveBans rewrites bans.json.
func (s *FileStore) SaveBans(_ context.Context, bans []store.Ban) error {
	if bans == nil {
		bans = []store.Ban{}
	}
	return s.write(store.CollectionBans, bans)
}

// LoadBannedWords returns the persisted banned-word list.
func (s *FileStore) LoadBannedWords(_ context.Context) ([]string, error) {
	var words []string
	if err := s.read(store.CollectionBannedWords, &words); err != nil {
		return nil, err
	}
	return words, nil
}

// SaveBannedWords rewrites bannedwords.json.
func (s *FileStore) SaveBannedWords(_ context.Context, words []string) error {
	if words == nil {
		words = []string{}
	}
	return s.write(store.CollectionBannedWords, words)
}

// LoadMessages returns the persisted history.
func (s *FileStore) LoadMessages(_ context.Context) ([]store.Message, error) {
	var messages []store.Message
	if err := s.read(store.CollectionMessages, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SaveMessages rewrites messages.json.
func (s *FileStore) SaveMessages(_ context.Context, messages []store.Message) error {
	if messages == nil {
		messages = []store.Message{}
	}
	return s.write(store.CollectionMessages, messages)
}

func (s *FileStore) path(collection string) string {
	return filepath.Join(s.dir, collection+".json")
}

func (s *FileStore) read(collection string, dst any) error {
	mu := s.locks[collection]
	mu.Lock()
	defer mu.Unlock()

	data, err := os.ReadFile(s.path(collection))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", collection, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", collection, err)
	}
	return nil
}

// write serializes writers per file and swaps the file in with a rename,
// so readers never observe a partially written array.
func (s *FileStore) write(collection string, v any) error {
	mu := s.locks[collection]
	mu.Lock()
	defer mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", collection, err)
	}

	tmp, err := os.CreateTemp(s.dir, collection+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", collection, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", collection, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", collection, err)
	}
	if err := os.Rename(tmpName, s.path(collection)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", collection, err)
	}
	return nil
}
