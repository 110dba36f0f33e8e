package store

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// PassportSummary is one cached medical summary, reachable through the hash
// embedded in a passport QR token.
type PassportSummary struct {
	Summary     string `json:"summary"`
	PatientName string `json:"patientName"`
	GeneratedAt string `json:"generatedAt"`
}

// SummaryHash derives the 16-hex cache key for a summary. The usual parts
// are the patient identity and the summary text; callers may append further
// discriminators such as a health-profile version.
func SummaryHash(parts ...string) string {
	digest := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(digest[:])[:16]
}

// PassportCache keeps generated summaries in memory so a scanned passport
// token can resolve to its text without re-running the summary model.
type PassportCache struct {
	mu      sync.RWMutex
	entries map[string]PassportSummary
	now     func() time.Time
}

func NewPassportCache() *PassportCache {
	return &PassportCache{entries: map[string]PassportSummary{}, now: time.Now}
}

func (c *PassportCache) Put(hash string, summary PassportSummary) {
	if summary.GeneratedAt == "" {
		summary.GeneratedAt = c.now().Format(time.RFC3339)
	}
	c.mu.Lock()
	c.entries[hash] = summary
	c.mu.Unlock()
}

func (c *PassportCache) Get(hash string) (PassportSummary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[hash]
	return entry, ok
}

func (c *PassportCache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// TrimOlderThan drops entries generated before the cutoff and reports how
// many were removed. Entries with unreadable timestamps are kept.
func (c *PassportCache) TrimOlderThan(maxAge time.Duration) int {
	cutoff := c.now().Add(-maxAge)
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for hash, entry := range c.entries {
		generatedAt, err := time.Parse(time.RFC3339, entry.GeneratedAt)
		if err != nil {
			continue
		}
		if generatedAt.Before(cutoff) {
			delete(c.entries, hash)
			removed++
		}
	}
	return removed
}
