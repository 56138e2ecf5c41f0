package password

import (
	"errors"
	"strings"
)

var (
	// ErrMalformedHash is returned when a stored digest cannot be parsed. It usually
	// indicates corrupted storage and never says which part of the digest was wrong.
	ErrMalformedHash = errors.New("malformed password hash")
	// ErrEmptyPassword is returned by Hash for an empty plaintext.
	ErrEmptyPassword = errors.New("password must not be empty")
)

// Format identifies the encoding family of a stored digest.
type Format string

const (
	// FormatUnknown is reported for digests no hasher recognizes.
	FormatUnknown Format = ""
	// FormatBcrypt covers $2a$, $2b$ and $2y$ modular crypt digests.
	FormatBcrypt Format = "bcrypt"
	// FormatArgon2id covers PHC encoded argon2id digests.
	FormatArgon2id Format = "argon2id"
)

// Hasher hashes and verifies passwords. Implementations must be safe for concurrent use.
//
// Verify returns (false, nil) on a mismatch and ErrMalformedHash (wrapped) when the digest
// cannot be interpreted. NeedsUpgrade reports whether a digest was produced with weaker
// parameters than the hasher is configured with.
type Hasher interface {
	Format() Format
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) (bool, error)
	NeedsUpgrade(digest string) (bool, error)
}

// FormatOf inspects the digest prefix and returns its format.
func FormatOf(digest string) Format {
	switch {
	case strings.HasPrefix(digest, "$2a$"),
		strings.HasPrefix(digest, "$2b$"),
		strings.HasPrefix(digest, "$2y$"):
		return FormatBcrypt
	case strings.HasPrefix(digest, "$"+algorithmID+"$"):
		return FormatArgon2id
	default:
		return FormatUnknown
	}
}

// Dispatch hashes with a primary hasher and routes verification to whichever registered
// hasher understands the stored digest.
type Dispatch struct {
	primary  Hasher
	byFormat map[Format]Hasher
}

// NewDispatch builds a Dispatch. primary is used for every new digest; legacy hashers are
// only consulted for verification and upgrade checks.
func NewDispatch(primary Hasher, legacy ...Hasher) (*Dispatch, error) {
	if primary == nil {
		return nil, errors.New("primary hasher required")
	}
	d := &Dispatch{
		primary:  primary,
		byFormat: map[Format]Hasher{primary.Format(): primary},
	}
	for _, h := range legacy {
		if h == nil {
			continue
		}
		if _, exists := d.byFormat[h.Format()]; exists {
			continue
		}
		d.byFormat[h.Format()] = h
	}
	return d, nil
}

// Format returns the primary hasher's format.
func (d *Dispatch) Format() Format {
	return d.primary.Format()
}

// Hash hashes plaintext with the primary hasher.
func (d *Dispatch) Hash(plaintext string) (string, error) {
	return d.primary.Hash(plaintext)
}

// Verify checks plaintext against a digest of any registered format.
func (d *Dispatch) Verify(plaintext, digest string) (bool, error) {
	h, ok := d.byFormat[FormatOf(digest)]
	if !ok {
		return false, ErrMalformedHash
	}
	return h.Verify(plaintext, digest)
}

// NeedsUpgrade reports true for digests in a non-primary format, and otherwise defers to
// the primary hasher's parameter comparison.
func (d *Dispatch) NeedsUpgrade(digest string) (bool, error) {
	format := FormatOf(digest)
	if _, ok := d.byFormat[format]; !ok {
		return false, ErrMalformedHash
	}
	if format != d.primary.Format() {
		return true, nil
	}
	return d.primary.NeedsUpgrade(digest)
}
