package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	// MethodEd25519 signs with EdDSA over Ed25519.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with HMAC-SHA256 using a shared secret.
	MethodHS256 SigningMethod = "hs256"
)

// MinHS256SecretBytes is the shortest accepted HMAC secret.
const MinHS256SecretBytes = 32

var (
	// ErrExpired is returned for an authentic token whose exp has passed.
	ErrExpired = errors.New("token expired")
	// ErrInvalid is returned for every other verification failure.
	ErrInvalid = errors.New("token invalid")
)

// Config holds signing keys and validation rules.
//
// Leeway widens the exp and iat checks. It defaults to zero so a token is rejected at
// exactly its expiry instant.
type Config struct {
	TTL           time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
	Now           func() time.Time
}

// Manager signs and verifies tokens. It is immutable after construction and safe for
// concurrent use.
type Manager struct {
	config Config
	now    func() time.Time
	parser *jwt.Parser
	method jwt.SigningMethod

	// signKey is nil for a verify-only ed25519 manager.
	signKey any
	// byKID is set when verification selects the key from the kid header.
	byKID map[string]any
	// verifyKey is used when byKID is empty.
	verifyKey any
}

// Claims is the token payload.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the sub claim.
func (c *Claims) UserID() string {
	return c.Subject
}

// SessionID returns the jti claim.
func (c *Claims) SessionID() string {
	return c.ID
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	m := &Manager{config: cfg, now: cfg.Now}
	if m.now == nil {
		m.now = time.Now
	}
	if err := m.loadKeys(); err != nil {
		return nil, err
	}
	if cfg.KeyID != "" && m.byKID != nil {
		if _, ok := m.byKID[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}
	m.parser = jwt.NewParser(options...)
	return m, nil
}

// loadKeys parses every configured key up front so Issue and Verify never see raw bytes.
func (m *Manager) loadKeys() error {
	cfg := m.config
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < MinHS256SecretBytes {
			return fmt.Errorf("hs256 requires a secret of at least %d bytes", MinHS256SecretBytes)
		}
		m.method = jwt.SigningMethodHS256
		m.signKey = cfg.PrivateKey
		m.verifyKey = cfg.PrivateKey
		if len(cfg.VerifyKeys) > 0 {
			m.byKID = make(map[string]any, len(cfg.VerifyKeys))
			for kid, key := range cfg.VerifyKeys {
				if strings.TrimSpace(kid) == "" {
					return errors.New("verify key map contains empty kid")
				}
				m.byKID[kid] = key
			}
		}
		return nil

	case MethodEd25519:
		m.method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return err
			}
			m.signKey = priv
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return err
			}
			m.verifyKey = pub
		}
		if len(cfg.VerifyKeys) == 0 && m.verifyKey == nil {
			return errors.New("ed25519 requires public key or verify key set")
		}
		if len(cfg.VerifyKeys) > 0 {
			m.byKID = make(map[string]any, len(cfg.VerifyKeys))
			for kid, key := range cfg.VerifyKeys {
				if strings.TrimSpace(kid) == "" {
					return errors.New("verify key map contains empty kid")
				}
				pub, err := parseEdPublicKey(key)
				if err != nil {
					return fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
				}
				m.byKID[kid] = pub
			}
		}
		return nil
	}
	return errors.New("unsupported signing method")
}

// TTL returns the configured token lifetime.
func (m *Manager) TTL() time.Duration {
	return m.config.TTL
}

// Issue signs a token for userID bound to sessionID. The returned expiry is the exp
// claim exactly as encoded, truncated to whole seconds.
func (m *Manager) Issue(userID, role, sessionID string) (string, time.Time, error) {
	if userID == "" || sessionID == "" {
		return "", time.Time{}, errors.New("token subject and id are required")
	}

	now := m.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        sessionID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	if m.signKey == nil {
		return "", time.Time{}, errors.New("ed25519 private key not configured")
	}
	token := jwt.NewWithClaims(m.method, claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}
	signed, err := token.SignedString(m.signKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Verify checks the signature and claims of tokenStr. It returns an error matching
// ErrExpired when only the expiry check failed and ErrInvalid for anything else.
func (m *Manager) Verify(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrInvalid
	}
	token, err := m.parser.ParseWithClaims(tokenStr, &Claims{}, m.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, fmt.Errorf("%w: %v", ErrExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalid
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing sub or jti", ErrInvalid)
	}
	return claims, nil
}

func (m *Manager) keyFunc(t *jwt.Token) (any, error) {
	if t.Method.Alg() != m.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}
	kid, _ := t.Header["kid"].(string)
	switch {
	case m.byKID != nil:
		key, ok := m.byKID[kid]
		if !ok {
			return nil, fmt.Errorf("unknown kid %q", kid)
		}
		return key, nil
	case m.config.KeyID != "" && kid != m.config.KeyID:
		return nil, fmt.Errorf("unknown kid %q", kid)
	}
	return m.verifyKey, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
