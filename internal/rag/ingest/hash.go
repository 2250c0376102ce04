// Package ingest implements C7: StartIngest/GetProgress, the per-upload
// progress FSM, and the background pipeline that drives C3 -> C1 -> C4.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
)

// ComputeHash returns the document's contentHash (domain.Document.ContentHash).
func ComputeHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
