// Package token mints and validates the signed, time-boxed identity activation
// keys embedded in activation links.
//
// Wire format: base64url(message "." signature), where message is
//
//	len(id):id:len(email):email:len(slug):slug:expiryUnix
//
// and signature is the raw HMAC-SHA256 of message. Length prefixes keep the
// message unambiguous even when a field contains ':' or '.'.
package token

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

const (
	separator  = '.'
	keyPurpose = "tenant-prospectus.identity-activation.v1"
	sigLength  = sha256.Size
)

var (
	ErrMalformedToken = errors.New("malformed token")
	ErrBadSignature   = errors.New("token signature mismatch")
	ErrExpired        = errors.New("token expired")
)

// Claims are the identity fields bound into a token.
type Claims struct {
	ID    string
	Email string
	Slug  string
}

// Codec issues and validates tokens under a single shared secret.
type Codec struct {
	key    []byte
	method *jwt.SigningMethodHMAC
	now    func() time.Time
}

// Option customizes a Codec.
type Option func(*Codec)

// WithClock injects the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec derives the signing key from secret. An empty secret is rejected.
func NewCodec(secret string, opts ...Option) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("hmac secret is required")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyPurpose)), key); err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}
	c := &Codec{
		key:    key,
		method: jwt.SigningMethodHS256,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issue returns a URL-safe token binding the claims to now+ttl.
func (c *Codec) Issue(id, email, slug string, ttl time.Duration) (string, error) {
	expiry := c.now().Add(ttl).Unix()
	msg := encodeMessage(id, email, slug, expiry)

	sig, err := c.method.Sign(msg, c.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	raw := make([]byte, 0, len(msg)+1+len(sig))
	raw = append(raw, msg...)
	raw = append(raw, separator)
	raw = append(raw, sig...)
	return base64.URLEncoding.EncodeToString(raw), nil
}

// Validate checks structure, then signature, then expiry.
func (c *Codec) Validate(tok string) (Claims, error) {
	raw, err := base64.URLEncoding.DecodeString(tok)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	// The signature is fixed-width binary and may itself contain the separator
	// byte, so split at the position implied by its length.
	cut := len(raw) - sigLength - 1
	if cut < 0 || raw[cut] != separator {
		return Claims{}, ErrMalformedToken
	}
	msg, sig := raw[:cut], raw[cut+1:]

	if err := c.method.Verify(string(msg), sig, c.key); err != nil {
		if errors.Is(err, jwt.ErrSignatureInvalid) {
			return Claims{}, ErrBadSignature
		}
		return Claims{}, fmt.Errorf("verify token: %w", err)
	}

	claims, expiry, err := decodeMessage(msg)
	if err != nil {
		return Claims{}, err
	}
	if c.now().Unix() > expiry {
		return Claims{}, ErrExpired
	}
	return claims, nil
}

func encodeMessage(id, email, slug string, expiry int64) string {
	var b strings.Builder
	for _, field := range []string{id, email, slug} {
		b.WriteString(strconv.Itoa(len(field)))
		b.WriteByte(':')
		b.WriteString(field)
		b.WriteByte(':')
	}
	b.WriteString(strconv.FormatInt(expiry, 10))
	return b.String()
}

func decodeMessage(msg []byte) (Claims, int64, error) {
	fields := make([]string, 0, 3)
	rest := msg
	for i := 0; i < 3; i++ {
		colon := bytes.IndexByte(rest, ':')
		if colon <= 0 {
			return Claims{}, 0, ErrMalformedToken
		}
		n, err := strconv.Atoi(string(rest[:colon]))
		if err != nil || n < 0 || colon+1+n >= len(rest) || rest[colon+1+n] != ':' {
			return Claims{}, 0, ErrMalformedToken
		}
		fields = append(fields, string(rest[colon+1:colon+1+n]))
		rest = rest[colon+2+n:]
	}
	expiry, err := strconv.ParseInt(string(rest), 10, 64)
	if err != nil {
		return Claims{}, 0, ErrMalformedToken
	}
	return Claims{ID: fields[0], Email: fields[1], Slug: fields[2]}, expiry, nil
}
