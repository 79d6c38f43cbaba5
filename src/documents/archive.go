package documents

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DirArchive drops rendered documents into a directory, typically the
// consume folder of a document management system
type DirArchive struct {
	Dir string
}

func NewDirArchive(dir string) (*DirArchive, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create document dir: %w", err)
	}
	return &DirArchive{Dir: dir}, nil
}

// Store writes via a temp file so consumers never see half a PDF
func (a *DirArchive) Store(ctx context.Context, filename string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := filepath.Base(filename)
	tmp, err := os.CreateTemp(a.Dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(a.Dir, name)); err != nil {
		return fmt.Errorf("failed to store %s: %w", name, err)
	}
	return nil
}
