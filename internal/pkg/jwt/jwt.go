package jwt

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// AccessAuth is the only access tag minted by the service.
const AccessAuth = "auth"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrEmptySecret  = errors.New("empty secret")
)

type Claims struct {
	UserID string `json:"_id"`
	Access string `json:"access"`
	jwtlib.RegisteredClaims
}

// Codec signs and verifies HS256 tokens with a single server secret.
// Tokens carry no expiry; their validity is bounded by the owner's token list.
type Codec struct {
	secret []byte
	now    func() time.Time
	cache  *expirable.LRU[string, Claims]
}

type Option func(*Codec)

// WithVerifyCache remembers up to size successfully verified tokens for ttl.
func WithVerifyCache(size int, ttl time.Duration) Option {
	return func(c *Codec) {
		if size <= 0 || ttl <= 0 {
			return
		}
		c.cache = expirable.NewLRU[string, Claims](size, nil, ttl)
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCodec(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	c := &Codec{secret: secret, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Codec) Issue(userID, access string) (string, error) {
	if userID == "" || access == "" {
		return "", ErrInvalidToken
	}
	claims := Claims{
		UserID: userID,
		Access: access,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwtlib.NewNumericDate(c.now()),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify checks the signature and payload of tokenString. Any failure yields
// ErrInvalidToken wrapped around the cause; a claim is returned only when the
// token is fully trusted.
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	if c.cache != nil {
		if cached, ok := c.cache.Get(tokenString); ok {
			claims := cached
			return &claims, nil
		}
	}
	claims, err := c.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.Add(tokenString, *claims)
	}
	return claims, nil
}

func (c *Codec) parse(tokenString string) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenString, &Claims{}, func(token *jwtlib.Token) (interface{}, error) {
		if token.Method.Alg() != jwtlib.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return c.secret, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}), jwtlib.WithTimeFunc(c.now))
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" || claims.Access == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
