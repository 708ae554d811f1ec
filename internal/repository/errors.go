package repository

import "errors"

var (
	// ErrInvalidCursor is returned before any store access when a pagination
	// cursor cannot be decoded.
	ErrInvalidCursor = errors.New("invalid pagination cursor")

	// ErrInvalidVote is returned before any store access when a vote value is
	// outside {-1, 1}.
	ErrInvalidVote = errors.New("vote value must be -1 or 1")
)
