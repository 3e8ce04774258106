package labels

import "errors"

var (
	ErrTypeKind       = errors.New("labels: mixed or missing symbol kind")
	ErrEmptyAlphabet  = errors.New("labels: empty alphabet")
	ErrInvalidBase    = errors.New("labels: code base must be 0 or 1")
	ErrUnknownLabel   = errors.New("labels: unknown label")
	ErrUnknownCode    = errors.New("labels: unknown code")
	ErrLengthMismatch = errors.New("labels: labels, onsets and offsets differ in length")
	ErrInvalidMap     = errors.New("labels: invalid label map")

	ErrInvalidLabelset = errors.New("labels: invalid labelset")
)
