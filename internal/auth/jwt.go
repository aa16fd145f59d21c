package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const sessionTTL = 7 * 24 * time.Hour

// Session is the authenticated caller carried through request contexts.
type Session struct {
	UserID uint64
	Role   string
}

func (s Session) IsAdmin() bool { return s.Role == RoleAdmin }

type JWT struct {
	secret []byte
	now    func() time.Time
}

func NewJWT(secret string) *JWT {
	return &JWT{secret: []byte(secret), now: time.Now}
}

func (j *JWT) Sign(userID uint64, role string) (string, error) {
	if role == "" {
		role = RoleUser
	}
	now := j.now()
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(sessionTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(j.secret)
}

func (j *JWT) Verify(tokenStr string) (Session, error) {
	t, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return j.secret, nil
	}, jwt.WithTimeFunc(j.now))
	if err != nil || !t.Valid {
		return Session{}, errors.New("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return Session{}, errors.New("invalid claims")
	}

	sub, ok := claims["sub"]
	if !ok {
		return Session{}, errors.New("missing sub")
	}

	// jwt MapClaims numbers are float64
	idf, ok := sub.(float64)
	if !ok || idf <= 0 {
		return Session{}, errors.New("invalid sub type")
	}

	role, _ := claims["role"].(string)
	if role == "" {
		role = RoleUser
	}
	return Session{UserID: uint64(idf), Role: role}, nil
}
