package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testKey = []byte("test-signing-key")

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func bearer(token string) *Request {
	return &Request{Header: http.Header{"Authorization": {"Bearer " + token}}}
}

func TestNewJWTAuthenticator_RequiresKey(t *testing.T) {
	if _, err := NewJWTAuthenticator(JWTConfig{}); !errors.Is(err, ErrMissingKey) {
		t.Errorf("error = %v, want ErrMissingKey", err)
	}
}

func TestJWTAuthenticator_Supports(t *testing.T) {
	a, _ := NewJWTAuthenticator(JWTConfig{Key: testKey})

	tests := []struct {
		name   string
		header string
		want   bool
	}{
		{"missing", "", false},
		{"bearer", "Bearer abc", true},
		{"lowercase scheme", "bearer abc", true},
		{"empty token", "Bearer ", false},
		{"basic", "Basic abc", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &Request{Header: http.Header{}}
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if got := a.Supports(context.Background(), req); got != tt.want {
				t.Errorf("Supports() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJWTAuthenticator_Authenticate(t *testing.T) {
	a, err := NewJWTAuthenticator(JWTConfig{Key: testKey, Issuer: "offlinecache", Audience: "admin"})
	if err != nil {
		t.Fatal(err)
	}
	valid := jwt.MapClaims{
		"sub":   "ops@example.com",
		"iss":   "offlinecache",
		"aud":   "admin",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"roles": []string{"admin", "viewer"},
	}

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"valid", signToken(t, jwt.SigningMethodHS256, testKey, valid), nil},
		{"wrong key", signToken(t, jwt.SigningMethodHS256, []byte("other"), valid), ErrInvalidCredentials},
		{"expired", signToken(t, jwt.SigningMethodHS256, testKey, jwt.MapClaims{
			"sub": "ops", "iss": "offlinecache", "aud": "admin",
			"exp": time.Now().Add(-time.Hour).Unix(),
		}), ErrTokenExpired},
		{"wrong issuer", signToken(t, jwt.SigningMethodHS256, testKey, jwt.MapClaims{
			"sub": "ops", "iss": "someone-else", "aud": "admin",
		}), ErrInvalidCredentials},
		{"wrong audience", signToken(t, jwt.SigningMethodHS256, testKey, jwt.MapClaims{
			"sub": "ops", "iss": "offlinecache", "aud": "public",
		}), ErrInvalidCredentials},
		{"unsigned", signToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid), ErrInvalidCredentials},
		{"garbage", "not.a.token", ErrTokenMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := a.Authenticate(context.Background(), bearer(tt.token))
			if err != nil {
				t.Fatalf("Authenticate returned internal error: %v", err)
			}
			if tt.wantErr != nil {
				if result.Authenticated || !errors.Is(result.Error, tt.wantErr) {
					t.Errorf("result = %+v, want failure %v", result, tt.wantErr)
				}
				return
			}
			if !result.Authenticated {
				t.Fatalf("result = %+v, want success", result)
			}
			id := result.Identity
			if id.Principal != "ops@example.com" || id.Method != MethodJWT {
				t.Errorf("identity = %+v", id)
			}
			if !id.HasRole("admin") || !id.HasRole("viewer") {
				t.Errorf("roles = %v", id.Roles)
			}
			if id.ExpiresAt.IsZero() {
				t.Error("ExpiresAt should come from exp")
			}
		})
	}
}

func TestJWTAuthenticator_SpaceSeparatedRoles(t *testing.T) {
	a, _ := NewJWTAuthenticator(JWTConfig{Key: testKey, RolesClaim: "scope"})
	token := signToken(t, jwt.SigningMethodHS512, testKey, jwt.MapClaims{"sub": "ci", "scope": "admin deploy"})

	result, _ := a.Authenticate(context.Background(), bearer(token))
	if !result.Authenticated || !result.Identity.HasRole("deploy") {
		t.Errorf("result = %+v", result)
	}
}

func TestJWTAuthenticator_MissingHeader(t *testing.T) {
	a, _ := NewJWTAuthenticator(JWTConfig{Key: testKey})
	result, err := a.Authenticate(context.Background(), &Request{})
	if err != nil || result.Authenticated || !errors.Is(result.Error, ErrMissingCredentials) {
		t.Errorf("Authenticate() = (%+v, %v)", result, err)
	}
}
