package model

import "time"

// AssetMeta is caller-supplied entry metadata.
type AssetMeta struct {
	ContentType string
	Source      string
}

// Asset is a copy-safe view of a cache entry. Payload is an owned copy:
// it never aliases the buffer stored inside the cache, and the stored
// buffer never aliases the one the caller inserted.
type Asset struct {
	Key         string
	Payload     []byte
	ContentType string
	Source      string
	SizeBytes   int64
	CreatedAt   time.Time
}
