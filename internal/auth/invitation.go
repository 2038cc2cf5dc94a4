// Package auth issues and verifies respondent invitations: signed tokens
// that bind a respondent to one child and quiz.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ZanzyTHEbar/learning-profile/internal/scoring"
)

const issuer = "learning-profile"

// Invitation is what a respondent is invited to fill in.
type Invitation struct {
	ChildID        string                 `json:"childId"`
	RespondentID   string                 `json:"respondentId,omitempty"`
	RespondentType scoring.RespondentType `json:"respondentType,omitempty"`
	QuizType       scoring.QuizType       `json:"quizType,omitempty"`
}

// Validate checks the invitation before it is signed.
func (inv Invitation) Validate() error {
	if inv.ChildID == "" {
		return errors.New("child id is required")
	}
	if !inv.RespondentType.Valid() {
		return fmt.Errorf("unknown respondent type %q", inv.RespondentType)
	}
	if !inv.QuizType.Valid() {
		return fmt.Errorf("unknown quiz type %q", inv.QuizType)
	}
	return nil
}

// Issuer signs and verifies invitation tokens with a shared secret.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

// NewIssuer returns an HS256 issuer. The secret must not be empty.
func NewIssuer(secret string) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &Issuer{secret: []byte(secret), now: time.Now}, nil
}

// Issue signs inv, valid for ttl.
func (i *Issuer) Issue(inv Invitation, ttl time.Duration) (token string, expiresAt time.Time, err error) {
	if err := inv.Validate(); err != nil {
		return "", time.Time{}, err
	}
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("ttl must be positive, got %s", ttl)
	}

	now := i.now()
	expiresAt = now.Add(ttl).Truncate(time.Second)
	claims := jwt.MapClaims{
		"iss":             issuer,
		"sub":             inv.ChildID,
		"respondent_id":   inv.RespondentID,
		"respondent_type": string(inv.RespondentType),
		"quiz_type":       string(inv.QuizType),
		"iat":             now.Unix(),
		"exp":             expiresAt.Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign invitation: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses a token and returns the invitation it carries.
func (i *Issuer) Verify(tokenString string) (*Invitation, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	childID, err := claims.GetSubject()
	if err != nil || childID == "" {
		return nil, errors.New("child id not found in token")
	}
	inv := &Invitation{
		ChildID:        childID,
		RespondentID:   stringClaim(claims, "respondent_id"),
		RespondentType: scoring.RespondentType(stringClaim(claims, "respondent_type")),
		QuizType:       scoring.QuizType(stringClaim(claims, "quiz_type")),
	}
	if err := inv.Validate(); err != nil {
		return nil, fmt.Errorf("invalid invitation claims: %w", err)
	}
	return inv, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}
