package format

import (
	"errors"
	"fmt"
)

var (
	ErrFormat      = errors.New("invalid file format")
	ErrVersion     = errors.New("unsupported file version")
	ErrCrossFormat = errors.New("wrong file type")
)

// VersionError reports a file written by a newer release than this reader.
type VersionError struct {
	Kind      Kind
	Version   uint8
	Supported uint8
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("%s file version %d was created by a newer release (this release reads up to version %d)",
		e.Kind, e.Version, e.Supported)
}

func (e *VersionError) Is(target error) bool {
	return target == ErrVersion
}

// CrossFormatError reports a vault passed where a manifest was expected, or
// the other way around.
type CrossFormatError struct {
	Expected Kind
	Found    Kind
}

func (e *CrossFormatError) Error() string {
	return fmt.Sprintf("expected a %s file but found a %s file", e.Expected, e.Found)
}

func (e *CrossFormatError) Is(target error) bool {
	return target == ErrCrossFormat
}
