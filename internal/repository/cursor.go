package repository

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cursors encode the ordering key of the last-seen feed row: its creation
// timestamp in microseconds plus its id as a tie-breaker. The encoding is
// opaque to clients; they only ever echo it back.

func EncodeCursor(createdAt time.Time, id int) string {
	raw := fmt.Sprintf("%d:%d", createdAt.UnixMicro(), id)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func DecodeCursor(cursor string) (time.Time, int, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	micros, idPart, ok := strings.Cut(string(raw), ":")
	if !ok {
		return time.Time{}, 0, ErrInvalidCursor
	}
	us, err := strconv.ParseInt(micros, 10, 64)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	id, err := strconv.Atoi(idPart)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	return time.UnixMicro(us).UTC(), id, nil
}
