package shardstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const (
	metaFileName      = "meta.json"
	metaLockFileName  = "meta.json.lock"
	shardsDirName     = "shards"
	metaFormatVersion = 1
)

// ReadMeta loads the metadata of the store at rootDir.
// ok is false if no store exists there yet.
func ReadMeta(rootDir string) (meta Meta, ok bool, err error) {
	if _, statErr := os.Stat(filepath.Join(rootDir, metaFileName)); errors.Is(statErr, fs.ErrNotExist) {
		return Meta{}, false, nil
	}
	lock := flock.New(filepath.Join(rootDir, metaLockFileName))
	if err := lock.RLock(); err != nil {
		return Meta{}, false, fmt.Errorf("failed to lock metadata: %w", err)
	}
	defer lock.Unlock()

	return readMetaFile(rootDir)
}

func readMetaFile(rootDir string) (Meta, bool, error) {
	data, err := os.ReadFile(filepath.Join(rootDir, metaFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return Meta{}, false, nil
	}
	if err != nil {
		return Meta{}, false, err
	}

	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, false, fmt.Errorf("failed to parse %s: %w", metaFileName, err)
	}
	return meta, true, nil
}

// writeMetaFile replaces meta.json atomically. Callers must hold the metadata lock.
func writeMetaFile(rootDir string, meta Meta, mode os.FileMode) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(rootDir, filepath.Join(rootDir, metaFileName), data, mode)
}

// writeFileAtomic writes data to a temp file in dir and renames it onto path
func writeFileAtomic(dir, path string, data []byte, mode os.FileMode) error {
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := f.Name()
	// no-op once the rename succeeded
	defer os.Remove(tmpName)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
