// Package idem derives idempotency keys for reward grants.
//
// Every grant is keyed by (user, action kind, content item, time bucket).
// The key is content-addressed: SHA-256 over the canonical JSON of the
// tuple with a domain prefix, so a retried or duplicated client call
// produces the same key and the remote store credits it at most once.
package idem

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Domain prefixes. XP and Coins are independent ledgers, so the same
// action yields one key per currency.
const (
	DomainCoinGrant = "jara/coin-grant/v1"
	DomainXPGrant   = "jara/xp-grant/v1"
)

// NoContent stands in for grants that are not tied to a content item.
const NoContent = "none"

// DefaultWindow is the width of the coarse time bucket.
const DefaultWindow = 10 * time.Minute

// Parts identifies a grant.
type Parts struct {
	UserID    string
	Source    string
	ContentID string
	Bucket    int64
}

// Bucket truncates t to the start of its window, in Unix milliseconds.
// A non-positive window falls back to DefaultWindow.
func Bucket(t time.Time, window time.Duration) int64 {
	if window <= 0 {
		window = DefaultWindow
	}
	return t.Truncate(window).UnixMilli()
}

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Key computes the idempotency key for p under domain.
func Key(domain string, p Parts) (string, error) {
	if p.UserID == "" {
		return "", fmt.Errorf("idempotency key: empty user id")
	}
	content := p.ContentID
	if content == "" {
		content = NoContent
	}
	canonical, err := MarshalCanonical(map[string]any{
		"user_id":    p.UserID,
		"source":     p.Source,
		"content_id": content,
		"bucket":     p.Bucket,
	})
	if err != nil {
		return "", fmt.Errorf("idempotency key: %w", err)
	}
	return hashWithDomain(domain, canonical), nil
}

// MustKey is like Key but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustKey(domain string, p Parts) string {
	k, err := Key(domain, p)
	if err != nil {
		panic(err)
	}
	return k
}
