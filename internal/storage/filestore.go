// Package storage implements the on-disk layers of the engine: a block
// store of fixed-size byte blocks keyed by BlockID, the slotted-page record
// format inside one block, and the heap file that strings pages together
// for one table.
package storage

import (
	"fmt"
	"io"
	"os"

	"ocelot/internal/core"
)

// BlockSize is the fixed size of every block and page.
const BlockSize = 4096

// BlockStore persists fixed-size opaque blocks keyed by positive integer
// ids. Any persistent record-numbered block store satisfies this interface.
type BlockStore interface {
	// Create creates the backing file exclusively; it fails if the file
	// already exists. The store is open afterwards.
	Create() error
	// Open opens an existing backing file.
	Open() error
	// Close closes the backing file; subsequent operations require reopen.
	Close() error
	// Drop removes the backing file, closing it first if needed.
	Drop() error
	// Get reads block id into a fresh BlockSize buffer.
	Get(id core.BlockID) ([]byte, error)
	// Put writes data under block id.
	Put(id core.BlockID, data []byte) error
	// Append writes data as a new block and returns its id.
	Append(data []byte) (core.BlockID, error)
	// Count returns the current number of blocks.
	Count() (uint32, error)
}

// FileStore is a BlockStore backed by a single OS file. Block id n occupies
// the byte range [(n-1)*BlockSize, n*BlockSize).
type FileStore struct {
	path string
	file *os.File
}

// NewFileStore returns a store for the file at path. The file is not
// touched until Create or Open.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Create() error {
	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("filestore: create %s: %w", s.path, err)
	}
	s.file = f
	return nil
}

func (s *FileStore) Open() error {
	if s.file != nil {
		return nil
	}
	f, err := os.OpenFile(s.path, os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("filestore: open %s: %w", s.path, err)
	}
	s.file = f
	return nil
}

func (s *FileStore) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	if err != nil {
		return fmt.Errorf("filestore: close %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) Drop() error {
	if err := s.Close(); err != nil {
		return err
	}
	if err := os.Remove(s.path); err != nil {
		return fmt.Errorf("filestore: drop %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) Get(id core.BlockID) ([]byte, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	count, err := s.Count()
	if err != nil {
		return nil, err
	}
	if id == 0 || uint32(id) > count {
		return nil, fmt.Errorf("filestore: block %d: %w", id, core.ErrNotFound)
	}
	buf := make([]byte, BlockSize)
	if _, err := s.file.ReadAt(buf, int64(id-1)*BlockSize); err != nil {
		return nil, fmt.Errorf("filestore: read block %d of %s: %w", id, s.path, err)
	}
	return buf, nil
}

func (s *FileStore) Put(id core.BlockID, data []byte) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if len(data) != BlockSize {
		return fmt.Errorf("filestore: put block %d: bad block size %d", id, len(data))
	}
	if _, err := s.file.WriteAt(data, int64(id-1)*BlockSize); err != nil {
		return fmt.Errorf("filestore: write block %d of %s: %w", id, s.path, err)
	}
	return nil
}

func (s *FileStore) Append(data []byte) (core.BlockID, error) {
	if err := s.ensureOpen(); err != nil {
		return 0, err
	}
	if len(data) != BlockSize {
		return 0, fmt.Errorf("filestore: append: bad block size %d", len(data))
	}
	end, err := s.file.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("filestore: append to %s: %w", s.path, err)
	}
	if _, err := s.file.WriteAt(data, end); err != nil {
		return 0, fmt.Errorf("filestore: append to %s: %w", s.path, err)
	}
	return core.BlockID(end/BlockSize) + 1, nil
}

func (s *FileStore) Count() (uint32, error) {
	if err := s.ensureOpen(); err != nil {
		return 0, err
	}
	info, err := s.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("filestore: stat %s: %w", s.path, err)
	}
	return uint32(info.Size() / BlockSize), nil
}

func (s *FileStore) ensureOpen() error {
	if s.file == nil {
		return fmt.Errorf("filestore: %s is not open", s.path)
	}
	return nil
}
