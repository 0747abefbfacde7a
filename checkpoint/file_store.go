package checkpoint

import (
	"context"
	"errors"
	"io/fs"

	"gridlearn/reinforcement"
)

// FileStore keeps the table in a single file on local disk.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) String() string { return "file:" + s.Path }

func (s *FileStore) Exists(ctx context.Context) (bool, error) {
	return reinforcement.Exists(s.Path), nil
}

func (s *FileStore) Save(ctx context.Context, table *reinforcement.QTable) error {
	return table.Save(s.Path)
}

// Load reports ErrNotFound, wrapped with the underlying PersistenceError, if the file is absent.
func (s *FileStore) Load(ctx context.Context, table *reinforcement.QTable) error {
	err := table.Load(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return errors.Join(ErrNotFound, err)
	}
	return err
}
