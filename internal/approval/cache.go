package approval

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Fingerprint derives a stable identifier from an operation kind and its
// already-normalized arguments.
func Fingerprint(kind string, args ...string) string {
	h := sha256.New()
	h.Write([]byte(kind))
	for _, arg := range args {
		h.Write([]byte{0})
		h.Write([]byte(arg))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Cache holds the decisions an operator asked to remember for one session.
// Each session owns its own Cache; it is never shared.
type Cache struct {
	mu        sync.Mutex
	decisions map[string]Decision
	now       func() time.Time
}

// NewCache creates an empty session cache.
func NewCache() *Cache {
	return &Cache{
		decisions: make(map[string]Decision),
		now:       time.Now,
	}
}

// Lookup returns the remembered verdict for fingerprint.
func (c *Cache) Lookup(fingerprint string) (Verdict, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, ok := c.decisions[fingerprint]
	return d.Verdict, ok
}

// Record remembers verdict for fingerprint, replacing any earlier decision.
func (c *Cache) Record(fingerprint string, verdict Verdict) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := Decision{
		Fingerprint: fingerprint,
		Verdict:     verdict,
		DecidedAt:   c.now().UTC(),
	}
	c.decisions[fingerprint] = d
	return d
}

// Reset forgets every remembered decision.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.decisions = make(map[string]Decision)
}

// Len returns the number of remembered decisions.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.decisions)
}
