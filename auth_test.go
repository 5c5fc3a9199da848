package main

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

// makeToken builds a compact JWT with the given claims. The signature is
// junk; session parsing never verifies it.
func makeToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	enc := func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		return base64.RawURLEncoding.EncodeToString(b)
	}
	header := enc(map[string]any{"alg": "HS256", "typ": "JWT"})
	payload := enc(claims)
	return header + "." + payload + "." + base64.RawURLEncoding.EncodeToString([]byte("sig"))
}

func authContext(header, cookie string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: cookie})
	}
	return e.NewContext(req, httptest.NewRecorder())
}

func TestAuthenticateBearer(t *testing.T) {
	s := &Server{}
	token := makeToken(t, map[string]any{"sub": "0xabc123"})

	sess, err := s.authenticate(authContext("Bearer "+token, ""))
	if err != nil {
		t.Fatal(err)
	}
	if sess.account != "0xabc123" {
		t.Errorf("account = %q", sess.account)
	}
	if sess.token != token {
		t.Error("raw token not retained")
	}
}

func TestAuthenticateCookie(t *testing.T) {
	s := &Server{}
	token := makeToken(t, map[string]any{"sub": "0xdef456"})

	sess, err := s.authenticate(authContext("", token))
	if err != nil {
		t.Fatal(err)
	}
	if sess.account != "0xdef456" {
		t.Errorf("account = %q", sess.account)
	}
}

func TestAuthenticateNestedActor(t *testing.T) {
	s := &Server{}
	token := makeToken(t, map[string]any{
		"act": map[string]any{"sub": "0xnested"},
	})

	sess, err := s.authenticate(authContext("Bearer "+token, ""))
	if err != nil {
		t.Fatal(err)
	}
	if sess.account != "0xnested" {
		t.Errorf("account = %q", sess.account)
	}
}

func TestAuthenticateRejects(t *testing.T) {
	s := &Server{}

	cases := []struct {
		name   string
		header string
		cookie string
	}{
		{"no credentials", "", ""},
		{"malformed header", "Token abc", ""},
		{"garbage token", "Bearer not.a.jwt", ""},
		{"non-address subject", "Bearer " + makeToken(t, map[string]any{"sub": "bob"}), ""},
		{"empty subject", "Bearer " + makeToken(t, map[string]any{}), ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.authenticate(authContext(tc.header, tc.cookie)); err == nil {
				t.Error("expected rejection")
			}
		})
	}
}

func TestAuthenticateHeaderWinsOverCookie(t *testing.T) {
	s := &Server{}
	headerTok := makeToken(t, map[string]any{"sub": "0xheader"})
	cookieTok := makeToken(t, map[string]any{"sub": "0xcookie"})

	sess, err := s.authenticate(authContext("Bearer "+headerTok, cookieTok))
	if err != nil {
		t.Fatal(err)
	}
	if sess.account != "0xheader" {
		t.Errorf("account = %q", sess.account)
	}
}
