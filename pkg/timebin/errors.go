package timebin

import (
	"errors"
	"fmt"
)

var (
	ErrInconsistentDuration = errors.New("timebin: inconsistent time bin duration")
	ErrInsufficientData     = errors.New("timebin: fewer than 2 time bins")
	ErrInvalidTimebins      = errors.New("timebin: time bin centers must be finite and strictly increasing")
	ErrOverlappingSegments  = errors.New("timebin: overlapping segments")
	ErrInvalidSegment       = errors.New("timebin: invalid segment")
	ErrUnsortedTimebins     = errors.New("timebin: time bin centers are not ascending")
	ErrNoUnlabeledClass     = errors.New("timebin: background time present but label map has no unlabeled class")
	ErrInvalidDuration      = errors.New("timebin: time bin duration must be positive and finite")
)

// FileError 把错误和出错的文件关联起来
type FileError struct {
	File string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

func fileErr(file string, err error) error {
	return &FileError{File: file, Err: err}
}
