package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const algorithmID = "argon2id"

// Floors below which a configuration or a stored digest is refused.
const (
	minArgon2MemoryKB = 8 * 1024
	minArgon2Bytes    = 16
)

var phcEncoding = base64.RawStdEncoding

// Argon2Config holds argon2id cost parameters. Memory is in KiB.
type Argon2Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Config returns the parameters used when argon2id is selected without tuning.
func DefaultArgon2Config() Argon2Config {
	return Argon2Config{Memory: 64 * 1024, Time: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32}
}

func (c Argon2Config) validate() error {
	switch {
	case c.Memory < minArgon2MemoryKB:
		return fmt.Errorf("argon2 memory must be >= %d KiB", minArgon2MemoryKB)
	case c.Time < 1:
		return errors.New("argon2 time must be >= 1")
	case c.Parallelism < 1:
		return errors.New("argon2 parallelism must be >= 1")
	case c.SaltLength < minArgon2Bytes:
		return fmt.Errorf("argon2 salt length must be >= %d", minArgon2Bytes)
	case c.KeyLength < minArgon2Bytes:
		return fmt.Errorf("argon2 key length must be >= %d", minArgon2Bytes)
	}
	return nil
}

// Argon2 hashes passwords with argon2id. Digests use the PHC string format
// $argon2id$v=19$m=<KiB>,t=<passes>,p=<lanes>$<salt>$<key>, base64 without padding.
type Argon2 struct {
	cfg Argon2Config
}

// NewArgon2 validates cfg and returns an argon2id hasher.
func NewArgon2(cfg Argon2Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{cfg: cfg}, nil
}

func (a *Argon2) Format() Format {
	return FormatArgon2id
}

// Hash returns a PHC encoded digest with a fresh random salt. The plaintext bytes are
// used as given, without Unicode normalisation.
func (a *Argon2) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	d := phcDigest{
		memory:      a.cfg.Memory,
		time:        a.cfg.Time,
		parallelism: a.cfg.Parallelism,
		salt:        make([]byte, a.cfg.SaltLength),
	}
	if _, err := rand.Read(d.salt); err != nil {
		return "", fmt.Errorf("argon2 salt: %w", err)
	}
	d.key = d.derive(plaintext, a.cfg.KeyLength)
	return d.String(), nil
}

// Verify re-derives the key with the digest's own parameters and compares in constant time.
func (a *Argon2) Verify(plaintext, digest string) (bool, error) {
	d, err := parsePHC(digest)
	if err != nil {
		return false, err
	}
	derived := d.derive(plaintext, uint32(len(d.key)))
	return subtle.ConstantTimeCompare(derived, d.key) == 1, nil
}

// NeedsUpgrade reports whether digest is cheaper than the configured parameters or has
// a different key length.
func (a *Argon2) NeedsUpgrade(digest string) (bool, error) {
	d, err := parsePHC(digest)
	if err != nil {
		return false, err
	}
	weaker := d.memory < a.cfg.Memory ||
		d.time < a.cfg.Time ||
		d.parallelism < a.cfg.Parallelism ||
		uint32(len(d.key)) != a.cfg.KeyLength
	return weaker, nil
}

type phcDigest struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (d phcDigest) derive(plaintext string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(plaintext), d.salt, d.time, d.memory, d.parallelism, keyLen)
}

func (d phcDigest) String() string {
	var b strings.Builder
	b.WriteString("$" + algorithmID + "$v=")
	b.WriteString(strconv.Itoa(argon2.Version))
	fmt.Fprintf(&b, "$m=%d,t=%d,p=%d$", d.memory, d.time, d.parallelism)
	b.WriteString(phcEncoding.EncodeToString(d.salt))
	b.WriteByte('$')
	b.WriteString(phcEncoding.EncodeToString(d.key))
	return b.String()
}

// parsePHC decodes an argon2id PHC string. Every failure wraps ErrMalformedHash.
func parsePHC(s string) (phcDigest, error) {
	malformed := func(what string) (phcDigest, error) {
		return phcDigest{}, fmt.Errorf("%w: argon2id %s", ErrMalformedHash, what)
	}

	fields := strings.Split(s, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != algorithmID {
		return malformed("layout")
	}
	if fields[2] != "v="+strconv.Itoa(argon2.Version) {
		return malformed("version")
	}

	var (
		d    phcDigest
		seen = map[string]bool{}
	)
	for _, kv := range strings.Split(fields[3], ",") {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok || seen[name] {
			return malformed("parameters")
		}
		seen[name] = true

		bits := 32
		if name == "p" {
			bits = 8
		}
		v, err := strconv.ParseUint(raw, 10, bits)
		if err != nil || v == 0 {
			return malformed("parameter " + name)
		}
		switch name {
		case "m":
			if v < minArgon2MemoryKB {
				return malformed("memory")
			}
			d.memory = uint32(v)
		case "t":
			d.time = uint32(v)
		case "p":
			d.parallelism = uint8(v)
		default:
			return malformed("parameter " + name)
		}
	}
	if len(seen) != 3 {
		return malformed("parameters")
	}

	var err error
	if d.salt, err = decodePHCField(fields[4]); err != nil || len(d.salt) < minArgon2Bytes {
		return malformed("salt")
	}
	if d.key, err = decodePHCField(fields[5]); err != nil || len(d.key) == 0 {
		return malformed("key")
	}
	return d, nil
}

// decodePHCField accepts both unpadded and padded base64, since digests written by other
// tools differ on padding.
func decodePHCField(s string) ([]byte, error) {
	return phcEncoding.DecodeString(strings.TrimRight(s, "="))
}
