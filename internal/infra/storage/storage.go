// Package storage persists captured photos for QA review. Saving is
// best-effort by contract: callers log failures and move on, guidance never
// waits on storage.
package storage

import (
	"context"
	"time"
)

// PhotoStore saves one photo under a key.
type PhotoStore interface {
	Save(ctx context.Context, key string, data []byte, contentType string) error
}

// PhotoInfo describes one stored photo for the QA listing.
type PhotoInfo struct {
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	Created  time.Time `json:"created"`
}
