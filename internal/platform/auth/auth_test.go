package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"abc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := BearerToken(tt.header); got != tt.want {
			t.Errorf("BearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestRequireAdmin(t *testing.T) {
	a := New("secret", time.Hour)
	admin, err := a.IssueToken("ops", RoleAdmin)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	user, err := a.IssueToken("learner", "user")
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	noRole, err := a.IssueToken("anon", "")
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	other, err := New("other-secret", time.Hour).IssueToken("ops", RoleAdmin)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: RoleAdmin})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{"admin", "Bearer " + admin, nil},
		{"user role", "Bearer " + user, ErrForbidden},
		{"missing role", "Bearer " + noRole, ErrForbidden},
		{"missing header", "", ErrMissingToken},
		{"wrong scheme", "Token " + admin, ErrMissingToken},
		{"garbage", "Bearer not.a.jwt", ErrInvalidToken},
		{"wrong secret", "Bearer " + other, ErrInvalidToken},
		{"alg none", "Bearer " + unsigned, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.RequireAdmin(tt.header)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("RequireAdmin() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRequireAdmin_Expired(t *testing.T) {
	a := New("secret", time.Minute)
	a.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := a.IssueToken("ops", RoleAdmin)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	_, err = a.RequireAdmin("Bearer " + token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("RequireAdmin() error = %v, want ErrInvalidToken", err)
	}
}

func TestNotConfigured(t *testing.T) {
	a := New("", 0)
	if a.Configured() {
		t.Fatal("Configured() = true for empty secret")
	}
	if _, err := a.RequireAdmin("Bearer x"); !errors.Is(err, ErrAuthNotConfigured) {
		t.Errorf("RequireAdmin() error = %v, want ErrAuthNotConfigured", err)
	}
	if _, err := a.IssueToken("ops", RoleAdmin); !errors.Is(err, ErrAuthNotConfigured) {
		t.Errorf("IssueToken() error = %v, want ErrAuthNotConfigured", err)
	}

	var nilAuth *Authenticator
	if nilAuth.Configured() {
		t.Error("nil Authenticator reports configured")
	}
}

func TestVerify_Claims(t *testing.T) {
	a := New("secret", 0)
	token, err := a.IssueToken("ops-1", RoleAdmin)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	claims, err := a.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Subject != "ops-1" || claims.Role != RoleAdmin {
		t.Errorf("claims = %+v", claims)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != 15*time.Minute {
		t.Errorf("token lifetime = %v, want 15m", got)
	}
}
