package transport

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var (
	ErrNotFound    = errors.New("object not found")
	ErrInvalidName = errors.New("invalid object name")
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Name       string    `json:"name" yaml:"name"`
	Size       int64     `json:"size" yaml:"size"`
	ModifiedAt time.Time `json:"modifiedAt" yaml:"modifiedAt"`
}

// Transport stores named objects.
type Transport interface {
	Upload(ctx context.Context, name string, data []byte) error
	Download(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context) ([]ObjectInfo, error)
	Delete(ctx context.Context, name string) error
}

// ValidateName rejects names that are empty, hidden, absolute, or not a
// single path element.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %s", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %s", ErrInvalidName, name)
	case !filepath.IsLocal(name):
		return fmt.Errorf("%w: %s", ErrInvalidName, name)
	}
	return nil
}

// Latest returns the most recently modified object whose name ends with
// suffix. Equal times are broken by name.
func Latest(ctx context.Context, t Transport, suffix string) (ObjectInfo, error) {
	objects, err := t.List(ctx)
	if err != nil {
		return ObjectInfo{}, err
	}

	var matching []ObjectInfo
	for _, o := range objects {
		if strings.HasSuffix(o.Name, suffix) {
			matching = append(matching, o)
		}
	}
	if len(matching) == 0 {
		return ObjectInfo{}, fmt.Errorf("%w: no *%s objects", ErrNotFound, suffix)
	}

	sort.Slice(matching, func(i, j int) bool {
		if !matching[i].ModifiedAt.Equal(matching[j].ModifiedAt) {
			return matching[i].ModifiedAt.After(matching[j].ModifiedAt)
		}
		return matching[i].Name > matching[j].Name
	})
	return matching[0], nil
}
