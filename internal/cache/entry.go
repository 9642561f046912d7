package cache

import (
	"container/list"
	"time"

	"github.com/Borislavv/go-asset-guard/model"
)

// entry is immutable after creation: re-insertion replaces it wholesale,
// it is never patched in place. payload is an owned copy, never the
// caller's buffer.
type entry struct {
	key         key
	name        string
	payload     []byte
	contentType string
	source      string
	size        int64
	createdAt   time.Time
	recency     uint64
	el          *list.Element
}

func newEntry(k key, name string, payload []byte, meta model.AssetMeta, recency uint64) *entry {
	owned := make([]byte, len(payload))
	copy(owned, payload)
	return &entry{
		key:         k,
		name:        name,
		payload:     owned,
		contentType: meta.ContentType,
		source:      meta.Source,
		size:        int64(len(payload)),
		createdAt:   time.Now(),
		recency:     recency,
	}
}

// view returns a copy-safe snapshot for callers.
func (e *entry) view() *model.Asset {
	payload := make([]byte, len(e.payload))
	copy(payload, e.payload)
	return &model.Asset{
		Key:         e.name,
		Payload:     payload,
		ContentType: e.contentType,
		Source:      e.source,
		SizeBytes:   e.size,
		CreatedAt:   e.createdAt,
	}
}
