package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const tmpPrefix = ".tmp-"

// Dir is a Transport backed by a directory. All file operations go through
// os.Root so that object names cannot reach outside it.
type Dir struct {
	root *os.Root
	path string
}

// NewDir opens (creating if needed) the directory at path.
func NewDir(path string) (*Dir, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0700); err != nil {
		return nil, fmt.Errorf("failed to create transport directory: %w", err)
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open transport directory: %w", err)
	}

	return &Dir{root: root, path: absPath}, nil
}

// Close releases the directory handle.
func (d *Dir) Close() error {
	return d.root.Close()
}

// Path returns the absolute directory path.
func (d *Dir) Path() string {
	return d.path
}

// Upload writes data to a temporary file and renames it into place, so a
// reader never sees a partial object.
func (d *Dir) Upload(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateName(name); err != nil {
		return err
	}

	tmp := tmpPrefix + uuid.NewString()
	f, err := d.root.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		d.root.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		d.root.Remove(tmp)
		return fmt.Errorf("failed to sync %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		d.root.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", name, err)
	}

	// Both names are validated single elements of the root
	if err := os.Rename(filepath.Join(d.path, tmp), filepath.Join(d.path, name)); err != nil {
		d.root.Remove(tmp)
		return fmt.Errorf("failed to store %s: %w", name, err)
	}
	return nil
}

// Download reads an object.
func (d *Dir) Download(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	f, err := d.root.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

// List returns every stored object sorted by name. Temporary files and
// subdirectories are skipped.
func (d *Dir) List(ctx context.Context) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir, err := d.root.Open(".")
	if err != nil {
		return nil, fmt.Errorf("failed to open transport directory: %w", err)
	}
	defer dir.Close()

	entries, err := dir.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("failed to list transport directory: %w", err)
	}

	var objects []ObjectInfo
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed while listing
		}
		objects = append(objects, ObjectInfo{
			Name:       e.Name(),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })
	return objects, nil
}

// Delete removes an object.
func (d *Dir) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateName(name); err != nil {
		return err
	}

	if err := d.root.Remove(name); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	return nil
}
