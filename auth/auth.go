// Package auth resolves the caller behind a request. Sign-in exchanges a
// Google OAuth code for the user's verified profile; subsequent requests
// carry a signed token naming the user row.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const tokenTTL = 12 * time.Hour

var ErrInvalidToken = errors.New("invalid token")

const userInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// Profile is what sign-in learns about the caller.
type Profile struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

type Authenticator struct {
	secret []byte
	oauth  *oauth2.Config
}

func New(secret []byte, clientID, clientSecret, redirectURL string) *Authenticator {
	return &Authenticator{
		secret: secret,
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
	}
}

// ExchangeCode trades an authorization code for the caller's profile.
func (a *Authenticator) ExchangeCode(ctx context.Context, code string) (Profile, error) {
	token, err := a.oauth.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("exchange code: %w", err)
	}

	response, err := a.oauth.Client(ctx, token).Get(userInfoURL)
	if err != nil {
		return Profile{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer response.Body.Close()

	var profile Profile
	if err := json.NewDecoder(response.Body).Decode(&profile); err != nil {
		return Profile{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if profile.Email == "" || !profile.EmailVerified {
		return Profile{}, errors.New("signin requires a verified email")
	}
	return profile, nil
}

// Issue signs a token for a user id.
func (a *Authenticator) Issue(userID int64) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   fmt.Sprintf("%d", userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify returns the user id a token was issued for.
func (a *Authenticator) Verify(tokenString string) (int64, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return 0, ErrInvalidToken
	}

	var userID int64
	if _, err := fmt.Sscanf(claims.Subject, "%d", &userID); err != nil {
		return 0, ErrInvalidToken
	}
	return userID, nil
}
