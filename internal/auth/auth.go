// Package auth verifies bearer tokens into platform identities.
//
// Token issuance (OTP flow, refresh) is owned by the authentication
// provider; this package is the verification side used by the HTTP surface
// and the session-plane handshake.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/shiva/swiftparcel/internal/model"
)

// ─── Errors ─────────────────────────────────────────────────

var (
	ErrMissingToken = errors.New("auth: missing token")
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrTokenExpired = errors.New("auth: token expired")
)

// ─── Identity ───────────────────────────────────────────────

// Identity is the resolved caller of a request or session.
type Identity struct {
	UserID   string
	UserType model.UserType
	Role     string
	Phone    string
}

// IsAdmin reports whether the identity may use the admin surface.
func (id Identity) IsAdmin() bool {
	return id.UserType == model.TypeAdmin &&
		(id.Role == string(model.RoleAdmin) || id.Role == string(model.RoleSuperAdmin))
}

// ─── Role-based user id ─────────────────────────────────────

// RoleUserID derives the stable user id for (phone, userType).
//
// One phone number may hold one identity per user type; the id is the hex
// SHA-256 of "phone|type" truncated to 28 bytes. The derivation is part of
// the auth-provider contract and must never change across releases.
func RoleUserID(phone string, userType model.UserType) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(phone) + "|" + string(userType)))
	return hex.EncodeToString(sum[:])[:28]
}

// ─── Verifier ───────────────────────────────────────────────

// Claims is the JWT claim set issued by the auth provider.
type Claims struct {
	UserType string `json:"user_type"`
	Role     string `json:"role,omitempty"`
	Phone    string `json:"phone"`
	jwt.RegisteredClaims
}

// Verifier validates HMAC-signed bearer tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier with the shared JWT secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates a bearer token into an Identity.
//
// The subject claim carries the role-based user id; when it is absent the
// id is re-derived from (phone, user_type) so tokens minted before the
// subject claim was added keep working.
func (v *Verifier) Verify(token string) (Identity, error) {
	claims, err := v.parse(token)
	if err != nil {
		return Identity{}, err
	}

	userType := model.UserType(claims.UserType)
	switch userType {
	case model.TypeCustomer, model.TypeDriver, model.TypeAdmin:
	default:
		return Identity{}, fmt.Errorf("%w: unknown user type %q", ErrInvalidToken, claims.UserType)
	}

	userID := claims.Subject
	if userID == "" {
		userID = RoleUserID(claims.Phone, userType)
	}

	return Identity{
		UserID:   userID,
		UserType: userType,
		Role:     claims.Role,
		Phone:    claims.Phone,
	}, nil
}

// Expiry returns the token's expiry instant. ok is false when the token is
// invalid or carries no expiry claim.
func (v *Verifier) Expiry(token string) (time.Time, bool) {
	claims, err := v.parse(token)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// parse validates the signature and standard claims; Verify and Expiry
// share it.
func (v *Verifier) parse(token string) (*Claims, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Issue mints a token for the given identity. Kept next to Verify so the
// two sides of the contract cannot drift; production issuance lives in the
// auth provider and uses the same claim set.
func (v *Verifier) Issue(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserType: string(id.UserType),
		Role:     id.Role,
		Phone:    id.Phone,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
