package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultCost is the bcrypt work factor applied when none is configured.
	DefaultCost = 12
	// MaxInputBytes is the longest plaintext bcrypt consumes.
	MaxInputBytes = 72
)

// Bcrypt hashes passwords with bcrypt at a fixed cost factor.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a bcrypt hasher. A cost of zero selects DefaultCost.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Bcrypt{cost: cost}, nil
}

// Cost returns the configured work factor.
func (b *Bcrypt) Cost() int {
	return b.cost
}

func (b *Bcrypt) Format() Format {
	return FormatBcrypt
}

// Hash returns a salted bcrypt digest of plaintext.
func (b *Bcrypt) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), b.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(digest), nil
}

// Verify compares plaintext with digest using bcrypt's own constant-time routine.
func (b *Bcrypt) Verify(plaintext, digest string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword),
		errors.Is(err, bcrypt.ErrPasswordTooLong):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
}

// NeedsUpgrade reports whether digest was produced with a lower cost than configured.
func (b *Bcrypt) NeedsUpgrade(digest string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(digest))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	return cost < b.cost, nil
}
