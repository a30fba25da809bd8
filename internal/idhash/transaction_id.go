// Package idhash computes deterministic identifiers.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"currency-ledger/internal/domain"
)

// TransactionDigest computes the digest that identifies and is signed for
// an action applied at seq.
// Formula: SHA256(seq|contract|action|permission|data)
func TransactionDigest(seq uint64, act domain.Action) [sha256.Size]byte {
	data := fmt.Sprintf("%d|%s|%s|%s|%s",
		seq,
		act.Contract,
		act.Name,
		act.Authorization,
		act.Data,
	)
	return sha256.Sum256([]byte(data))
}

// ComputeTransactionID returns the hex-encoded TransactionDigest (64 characters).
func ComputeTransactionID(seq uint64, act domain.Action) string {
	digest := TransactionDigest(seq, act)
	return hex.EncodeToString(digest[:])
}
