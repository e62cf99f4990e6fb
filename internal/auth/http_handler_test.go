package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/oauth2"

	"github.com/hal9000y/gmail-agent/internal/auth"
)

type tokMock struct {
	AuthorizeCodeFunc func(ctx context.Context, code, state string) error
	OAuthTokenFunc    func() (*oauth2.Token, error)
	RedirectURLFunc   func() (string, error)
}

func (m *tokMock) AuthorizeCode(ctx context.Context, code, state string) error {
	return m.AuthorizeCodeFunc(ctx, code, state)
}

func (m *tokMock) OAuthToken() (*oauth2.Token, error) {
	return m.OAuthTokenFunc()
}

func (m *tokMock) RedirectURL() (string, error) {
	return m.RedirectURLFunc()
}

func TestHTTPHandler(t *testing.T) {
	expiry := time.Date(2025, 9, 15, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name         string
		target       string
		tok          *tokMock
		wantStatus   int
		wantLocation string
		wantBody     string
	}{
		{
			name:         "starts consent",
			target:       "/oauth?redirect=1",
			tok:          &tokMock{RedirectURLFunc: func() (string, error) { return "https://accounts.example.com/auth?state=s", nil }},
			wantStatus:   http.StatusFound,
			wantLocation: "https://accounts.example.com/auth?state=s",
		},
		{
			name:       "consent url failure",
			target:     "/oauth?redirect=1",
			tok:        &tokMock{RedirectURLFunc: func() (string, error) { return "", errors.New("no entropy") }},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:   "callback",
			target: "/oauth?code=c&state=s",
			tok: &tokMock{AuthorizeCodeFunc: func(_ context.Context, code, state string) error {
				if code != "c" || state != "s" {
					return errors.New("unexpected")
				}
				return nil
			}},
			wantStatus:   http.StatusFound,
			wantLocation: "/oauth",
		},
		{
			name:       "callback failure",
			target:     "/oauth?code=c&state=bad",
			tok:        &tokMock{AuthorizeCodeFunc: func(context.Context, string, string) error { return errors.New("invalid state") }},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "no token",
			target:     "/oauth",
			tok:        &tokMock{OAuthTokenFunc: func() (*oauth2.Token, error) { return nil, auth.ErrTokenNotSet }},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:   "masked token",
			target: "/oauth",
			tok: &tokMock{OAuthTokenFunc: func() (*oauth2.Token, error) {
				return &oauth2.Token{AccessToken: "secret-abcd", Expiry: expiry}, nil
			}},
			wantStatus: http.StatusOK,
			wantBody:   "Token: XXXXXXXabcd, expires: 2025-09-15T10:00:00Z",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			auth.NewHTTPHandler(tc.tok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.target, nil))

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantLocation != "" {
				assert.Equal(t, tc.wantLocation, rec.Header().Get("Location"))
			}
			if tc.wantBody != "" {
				assert.Equal(t, tc.wantBody, rec.Body.String())
			}
		})
	}
}
