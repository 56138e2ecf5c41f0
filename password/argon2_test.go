package password

import (
	"errors"
	"strings"
	"testing"
)

// fastArgon2 keeps tests quick while staying above the parameter floors.
func fastArgon2(t *testing.T, mutate func(*Argon2Config)) *Argon2 {
	t.Helper()
	cfg := Argon2Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	if mutate != nil {
		mutate(&cfg)
	}
	h, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	return h
}

func TestArgon2RoundTrip(t *testing.T) {
	h := fastArgon2(t, nil)

	digest, err := h.Hash("P@ssw0rd-ünïcode")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(digest, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", digest)
	}
	if strings.Contains(digest, "=$") || strings.HasSuffix(digest, "=") {
		t.Fatalf("digest should be unpadded: %s", digest)
	}
	if FormatOf(digest) != FormatArgon2id {
		t.Fatalf("FormatOf = %q", FormatOf(digest))
	}

	for _, tc := range []struct {
		plaintext string
		want      bool
	}{
		{"P@ssw0rd-ünïcode", true},
		{"P@ssw0rd-unicode", false},
		{"", false},
	} {
		ok, err := h.Verify(tc.plaintext, digest)
		if err != nil {
			t.Fatalf("Verify(%q): %v", tc.plaintext, err)
		}
		if ok != tc.want {
			t.Fatalf("Verify(%q) = %v, want %v", tc.plaintext, ok, tc.want)
		}
	}

	other, _ := h.Hash("P@ssw0rd-ünïcode")
	if other == digest {
		t.Fatal("two hashes of one password share a salt")
	}
}

func TestArgon2AcceptsPaddedDigest(t *testing.T) {
	h := fastArgon2(t, nil)
	digest, err := h.Hash("padded-input")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	fields := strings.Split(digest, "$")
	fields[4] += "=="
	fields[5] += "="
	padded := strings.Join(fields, "$")

	ok, err := h.Verify("padded-input", padded)
	if err != nil || !ok {
		t.Fatalf("padded digest rejected: ok=%v err=%v", ok, err)
	}
}

func TestArgon2NeedsUpgrade(t *testing.T) {
	weak := fastArgon2(t, nil)
	digest, err := weak.Hash("upgrade-me")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Argon2Config)
		want   bool
	}{
		{"same parameters", nil, false},
		{"more memory", func(c *Argon2Config) { c.Memory = 16 * 1024 }, true},
		{"more passes", func(c *Argon2Config) { c.Time = 2 }, true},
		{"more lanes", func(c *Argon2Config) { c.Parallelism = 2 }, true},
		{"other key length", func(c *Argon2Config) { c.KeyLength = 64 }, true},
		{"longer salt only", func(c *Argon2Config) { c.SaltLength = 32 }, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := fastArgon2(t, tc.mutate).NeedsUpgrade(digest)
			if err != nil {
				t.Fatalf("NeedsUpgrade: %v", err)
			}
			if got != tc.want {
				t.Fatalf("NeedsUpgrade = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestArgon2MalformedDigests(t *testing.T) {
	h := fastArgon2(t, nil)
	good, err := h.Hash("malformed")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	fields := strings.Split(good, "$")
	with := func(i int, v string) string {
		f := append([]string(nil), fields...)
		f[i] = v
		return strings.Join(f, "$")
	}

	cases := map[string]string{
		"not phc":         "not-a-phc-hash",
		"wrong algorithm": with(1, "argon2i"),
		"wrong version":   with(2, "v=18"),
		"low memory":      with(3, "m=1024,t=1,p=1"),
		"zero passes":     with(3, "m=8192,t=0,p=1"),
		"duplicate param": with(3, "m=8192,m=8192,p=1"),
		"unknown param":   with(3, "m=8192,t=1,x=1"),
		"missing param":   with(3, "m=8192,t=1"),
		"short salt":      with(4, "c2FsdA"),
		"bad salt":        with(4, "!!!!"),
		"empty key":       with(5, ""),
		"too many fields": good + "$extra",
		"lanes overflow":  with(3, "m=8192,t=1,p=300"),
	}
	for name, digest := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := h.Verify("malformed", digest); !errors.Is(err, ErrMalformedHash) {
				t.Fatalf("Verify: expected ErrMalformedHash, got %v", err)
			}
			if _, err := h.NeedsUpgrade(digest); !errors.Is(err, ErrMalformedHash) {
				t.Fatalf("NeedsUpgrade: expected ErrMalformedHash, got %v", err)
			}
		})
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	base := Argon2Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	for name, mutate := range map[string]func(*Argon2Config){
		"memory":      func(c *Argon2Config) { c.Memory = 4096 },
		"time":        func(c *Argon2Config) { c.Time = 0 },
		"parallelism": func(c *Argon2Config) { c.Parallelism = 0 },
		"salt":        func(c *Argon2Config) { c.SaltLength = 8 },
		"key":         func(c *Argon2Config) { c.KeyLength = 8 },
	} {
		cfg := base
		mutate(&cfg)
		if _, err := NewArgon2(cfg); err == nil {
			t.Fatalf("%s: expected config rejected", name)
		}
	}
	if _, err := NewArgon2(DefaultArgon2Config()); err != nil {
		t.Fatalf("default config rejected: %v", err)
	}
}

func TestArgon2HashEmptyPassword(t *testing.T) {
	if _, err := fastArgon2(t, nil).Hash(""); !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
}
