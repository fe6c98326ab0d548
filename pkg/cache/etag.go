package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultETagTTL bounds how long an ETag and its payload are kept. ESI etags
// stay valid until the resource changes, but entries for requests that are
// never repeated should not pile up forever.
const DefaultETagTTL = 7 * 24 * time.Hour

// ETagEntry stores a response fingerprint together with the payload it
// fingerprints, so a 304 Not Modified can be answered from cache.
type ETagEntry struct {
	ETag    string          `json:"etag"`
	Payload json.RawMessage `json:"payload"`
}

// GetETag returns the stored ETag entry for a request identity. A missing or
// corrupted entry reports ok=false; an empty conditional header is a valid
// no-op for the caller.
func GetETag(ctx context.Context, store Store, identity string) (ETagEntry, bool) {
	data, err := store.Get(ctx, identity)
	if err != nil {
		return ETagEntry{}, false
	}

	var entry ETagEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return ETagEntry{}, false
	}
	return entry, true
}

// SetETag stores etag and payload under a request identity.
func SetETag(ctx context.Context, store Store, identity, etag string, payload json.RawMessage) error {
	data, err := json.Marshal(ETagEntry{ETag: etag, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal etag entry: %w", err)
	}
	return store.Set(ctx, identity, data, DefaultETagTTL)
}
