package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"
)

const (
	codeMin = 100000
	codeSpan = 900000
)

type issuedCode struct {
	code      string
	expiresAt time.Time
}

// Verifier issues short-lived six-digit codes bound to a booking attempt.
// Issuing again for the same attempt overwrites the previous code.
type Verifier struct {
	mu    sync.Mutex
	codes map[string]issuedCode
	ttl   time.Duration
	now   func() time.Time
}

type Option func(*Verifier)

// WithClock overrides the time source (useful for expiry tests).
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		v.now = now
	}
}

func NewVerifier(ttl time.Duration, opts ...Option) *Verifier {
	v := &Verifier{
		codes: make(map[string]issuedCode),
		ttl:   ttl,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Issue generates a code in [100000, 999999] for the attempt and returns it
// with its expiry.
func (v *Verifier) Issue(attemptID string) (string, time.Time, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate code: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64()+codeMin)

	v.mu.Lock()
	defer v.mu.Unlock()

	expiresAt := v.now().Add(v.ttl)
	v.codes[attemptID] = issuedCode{code: code, expiresAt: expiresAt}
	return code, expiresAt, nil
}

// Verify reports whether supplied matches the last code issued for the
// attempt and the code has not expired.
func (v *Verifier) Verify(attemptID, supplied string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	issued, ok := v.codes[attemptID]
	if !ok {
		return false
	}
	if v.now().After(issued.expiresAt) {
		return false
	}
	return issued.code == supplied
}

// Drop forgets any code issued for the attempt.
func (v *Verifier) Drop(attemptID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.codes, attemptID)
}
