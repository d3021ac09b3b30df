package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestAPIKeyAuthenticator(t *testing.T) {
	a := NewAPIKeyAuthenticator("",
		APIKey{ID: "ci", Key: "sk_ci", Principal: "ci-bot", Roles: []string{RoleAdmin}},
		APIKey{ID: "blank", Key: "  ", Principal: "nobody"},
	)
	if a.Name() != "api_key" {
		t.Errorf("Name() = %q", a.Name())
	}

	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"valid", "sk_ci", nil},
		{"valid with whitespace", "  sk_ci ", nil},
		{"unknown", "sk_other", ErrInvalidCredentials},
		{"blank key is never accepted", " ", ErrMissingCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &Request{Header: http.Header{"X-Api-Key": {tt.key}}}
			result, err := a.Authenticate(context.Background(), req)
			if err != nil {
				t.Fatalf("internal error: %v", err)
			}
			if tt.wantErr != nil {
				if result.Authenticated || !errors.Is(result.Error, tt.wantErr) {
					t.Errorf("result = %+v, want %v", result, tt.wantErr)
				}
				return
			}
			if !result.Authenticated || result.Identity.Principal != "ci-bot" {
				t.Fatalf("result = %+v", result)
			}
			if result.Identity.Claims["key_id"] != "ci" || !result.Identity.HasRole(RoleAdmin) {
				t.Errorf("identity = %+v", result.Identity)
			}
		})
	}
}

func TestAPIKeyAuthenticator_CustomHeader(t *testing.T) {
	a := NewAPIKeyAuthenticator("X-Offline-Key", APIKey{ID: "k", Key: "secret", Principal: "p"})
	req := &Request{Header: http.Header{}}
	req.Header.Set("X-Offline-Key", "secret")

	if !a.Supports(context.Background(), req) {
		t.Fatal("Supports() = false")
	}
	if result, _ := a.Authenticate(context.Background(), req); !result.Authenticated {
		t.Errorf("result = %+v", result)
	}
	if a.Supports(context.Background(), &Request{Header: http.Header{"X-Api-Key": {"secret"}}}) {
		t.Error("default header should not be consulted")
	}
}

func TestHashAPIKey(t *testing.T) {
	got := HashAPIKey("abc")
	if len(got) != 64 || got != HashAPIKey("abc") || got == HashAPIKey("abd") {
		t.Errorf("HashAPIKey(abc) = %q", got)
	}
}
