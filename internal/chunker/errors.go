package chunker

import "errors"

var (
	// ErrEmptyText indicates there is nothing to chunk.
	ErrEmptyText = errors.New("cannot chunk empty text")

	// ErrInvalidChunkSize indicates the chunk size is not positive.
	ErrInvalidChunkSize = errors.New("max chunk chars must be positive")

	// ErrInvalidOverlap indicates the overlap is not positive.
	ErrInvalidOverlap = errors.New("overlap chars must be positive")

	// ErrOverlapTooLarge indicates the overlap is not smaller than the chunk size.
	ErrOverlapTooLarge = errors.New("overlap chars must be less than max chunk chars")
)
