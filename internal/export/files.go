// Package export writes reports to local files and remote sinks.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yourorg/btc-maxpain/internal/model"
)

// FileEncoder renders one local report file.
type FileEncoder interface {
	Name() string
	Target() string
	Encode(r *model.Report) ([]byte, error)
}

// FileSet writes its files as a unit. Every file is encoded and staged next to
// its target before any target is replaced, so an encode or write failure
// leaves the previous files untouched.
type FileSet struct {
	Files []FileEncoder
}

func (s FileSet) Name() string { return "files" }

// Paths lists the target of every file in the set.
func (s FileSet) Paths() []string {
	paths := make([]string, 0, len(s.Files))
	for _, f := range s.Files {
		paths = append(paths, f.Target())
	}
	return paths
}

func (s FileSet) Export(_ context.Context, r *model.Report) error {
	staged := make([]stagedFile, 0, len(s.Files))
	defer func() {
		for _, sf := range staged {
			sf.discard()
		}
	}()

	for _, f := range s.Files {
		data, err := f.Encode(r)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name(), err)
		}
		sf, err := stageFile(f.Target(), data)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name(), err)
		}
		staged = append(staged, sf)
	}

	for i := range staged {
		if err := staged[i].commit(); err != nil {
			return fmt.Errorf("%s: %w", s.Files[i].Name(), err)
		}
	}
	return nil
}

// stagedFile is a fully written temp file waiting to be renamed onto path.
type stagedFile struct {
	tmp  string
	path string
	done bool
}

// stageFile writes data to a temp file next to path, creating the parent
// directory if needed.
func stageFile(path string, data []byte) (stagedFile, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return stagedFile{}, fmt.Errorf("create output directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return stagedFile{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return stagedFile{}, fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return stagedFile{}, fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return stagedFile{}, fmt.Errorf("chmod %s: %w", path, err)
	}
	return stagedFile{tmp: tmpName, path: path}, nil
}

func (sf *stagedFile) commit() error {
	if err := os.Rename(sf.tmp, sf.path); err != nil {
		return fmt.Errorf("rename into %s: %w", sf.path, err)
	}
	sf.done = true
	return nil
}

func (sf stagedFile) discard() {
	if !sf.done {
		os.Remove(sf.tmp)
	}
}
