package auth

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// DefaultTTL is how long an issued token stays valid.
const DefaultTTL = 7 * 24 * time.Hour

var (
	ErrBadToken = errors.New("invalid token")
	ErrNoSecret = errors.New("JWT_SECRET is not configured")
)

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// DummyHash is a valid hash of no user's password. Comparing against it when
// no account matches makes an unknown email cost the same as a wrong password.
var DummyHash = sync.OnceValue(func() string {
	h, err := HashPassword("meeting-scheduler:no-such-account")
	if err != nil {
		panic(err)
	}
	return h
})

type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies signed bearer tokens. There is no server-side
// revocation: a valid signature and an unexpired token is all that is checked.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock returns a copy of t that reads time from now.
func (t *Tokens) WithClock(now func() time.Time) *Tokens {
	c := *t
	c.now = now
	return &c
}

func (t *Tokens) Configured() bool { return len(t.secret) > 0 }

func (t *Tokens) Issue(uid string) (string, error) {
	if !t.Configured() {
		return "", ErrNoSecret
	}
	now := t.now()
	c := Claims{
		UserID: uid,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.secret)
}

// Verify returns the user id bound to raw. Malformed, expired and badly
// signed tokens all yield ErrBadToken.
func (t *Tokens) Verify(raw string) (string, error) {
	if !t.Configured() || raw == "" {
		return "", ErrBadToken
	}
	tok, err := jwt.ParseWithClaims(raw, &Claims{}, func(tk *jwt.Token) (any, error) {
		// block alg confusion
		if _, ok := tk.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadToken
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithExpirationRequired())
	if err != nil {
		return "", ErrBadToken
	}
	c, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || c.UserID == "" {
		return "", ErrBadToken
	}
	return c.UserID, nil
}
