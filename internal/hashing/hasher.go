// Package hashing computes the content hashes C1 tracks per document and
// per chunk to detect changes across re-ingests (§3, §4.8).
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// FileHash hashes the raw bytes of a source document.
func FileHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// ChunkHash hashes one chunk's normalized text. Two chunks with identical
// text hash identically regardless of ordinal, which is what the
// incremental diff (C8) relies on.
func ChunkHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ChunkHashes hashes a slice of chunk texts in order.
func ChunkHashes(texts []string) []string {
	hashes := make([]string, len(texts))
	for i, t := range texts {
		hashes[i] = ChunkHash(t)
	}
	return hashes
}

// ChunkID derives chunk_id deterministically from doc_id and ordinal
// (§3): re-ingesting identical bytes recomputes the same ordinal for
// the same content and therefore the same chunk_id, which is what lets
// Upsert's ON CONFLICT (chunk_id) keep the index idempotent (§8).
func ChunkID(docID string, ordinal int) string {
	sum := sha256.Sum256([]byte(docID + "#" + strconv.Itoa(ordinal)))
	return hex.EncodeToString(sum[:])
}
