package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ContentIDPolicy computes a stable identifier for a knowledge passage.
// It ensures idempotency: the same source tag and text (normalized)
// always map to the same ID, so re-seeding never duplicates rows.
type ContentIDPolicy interface {
	Compute(sourceTag, text string) string
}

type contentIDPolicy struct{}

// NewContentIDPolicy creates the default ContentIDPolicy.
func NewContentIDPolicy() ContentIDPolicy {
	return &contentIDPolicy{}
}

// Compute returns the SHA-256 hex digest of the normalized content.
// The components are joined with a null byte so the tag/text boundary
// stays unambiguous.
func (p *contentIDPolicy) Compute(sourceTag, text string) string {
	normalizedTag := strings.TrimSpace(sourceTag)
	normalizedText := strings.TrimSpace(text)

	content := normalizedTag + "\x00" + normalizedText

	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}
