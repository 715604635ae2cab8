package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// releaseScript deletes key only if its value still matches the token
// presented, so a lock holder never releases a lease another ingest has
// since acquired after this one's TTL expired.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// DocumentLock serializes concurrent re-ingests of the same doc_id (§5):
// "Two ingests of the same doc_id are serialized by a per-document lock
// held ... for the duration of processing. A second attempt fails with
// DocumentBusy."
type DocumentLock struct {
	client Client
	ttl    time.Duration
}

// NewDocumentLock builds a lock with the given lease TTL. The TTL must
// comfortably exceed the longest expected processing time; nothing in
// this core refreshes a lease on its own (a holder can call Refresh).
func NewDocumentLock(client Client, ttl time.Duration) *DocumentLock {
	return &DocumentLock{client: client, ttl: ttl}
}

func lockKey(docID string) string {
	return fmt.Sprintf("doclock:%s", docID)
}

// Handle is the token needed to release or refresh an acquired lease.
type Handle struct {
	DocID string
	Token string
}

// Acquire tries to take the lock for docID. ok is false when the document
// is already being processed by another ingest (caller should surface
// model.ErrDocumentBusy).
func (l *DocumentLock) Acquire(ctx context.Context, docID string) (h Handle, ok bool, err error) {
	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, lockKey(docID), token, l.ttl)
	if err != nil {
		return Handle{}, false, fmt.Errorf("document lock acquire: %w", err)
	}
	if !acquired {
		return Handle{}, false, nil
	}
	return Handle{DocID: docID, Token: token}, true, nil
}

// Release drops the lease, but only if it is still the current holder.
func (l *DocumentLock) Release(ctx context.Context, h Handle) error {
	_, err := l.client.Eval(ctx, releaseScript, lockKey(h.DocID), h.Token)
	if err != nil {
		return fmt.Errorf("document lock release: %w", err)
	}
	return nil
}

// Refresh extends the lease TTL for a long-running ingest by writing the
// Handle's token back with a plain Set. It does not check that the key
// still holds that token before overwriting it.
func (l *DocumentLock) Refresh(ctx context.Context, h Handle) error {
	return l.client.Set(ctx, lockKey(h.DocID), h.Token, l.ttl)
}
