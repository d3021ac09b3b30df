package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

type stubAuth struct {
	name     string
	supports bool
	result   *Result
	err      error
	calls    int
}

func (s *stubAuth) Name() string                           { return s.name }
func (s *stubAuth) Supports(context.Context, *Request) bool { return s.supports }
func (s *stubAuth) Authenticate(context.Context, *Request) (*Result, error) {
	s.calls++
	return s.result, s.err
}

func TestCompositeAuthenticator(t *testing.T) {
	ok := Success(&Identity{Principal: "p", Method: MethodAPIKey})
	fail := Failure(ErrInvalidCredentials, MethodJWT)
	internal := errors.New("db down")

	tests := []struct {
		name      string
		auths     []*stubAuth
		wantAuth  bool
		wantErr   error
		wantCalls []int
	}{
		{
			name:      "first success wins",
			auths:     []*stubAuth{{supports: true, result: ok}, {supports: true, result: ok}},
			wantAuth:  true,
			wantCalls: []int{1, 0},
		},
		{
			name:      "skips unsupported",
			auths:     []*stubAuth{{supports: false, result: fail}, {supports: true, result: ok}},
			wantAuth:  true,
			wantCalls: []int{0, 1},
		},
		{
			name:      "falls through failures",
			auths:     []*stubAuth{{supports: true, result: fail}, {supports: true, result: ok}},
			wantAuth:  true,
			wantCalls: []int{1, 1},
		},
		{
			name:      "internal error stops",
			auths:     []*stubAuth{{supports: true, err: internal}, {supports: true, result: ok}},
			wantErr:   internal,
			wantCalls: []int{1, 0},
		},
		{
			name:      "nothing supported",
			auths:     []*stubAuth{{supports: false}},
			wantCalls: []int{0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var auths []Authenticator
			for _, a := range tt.auths {
				auths = append(auths, a)
			}
			c := NewCompositeAuthenticator(auths...)
			result, err := c.Authenticate(context.Background(), &Request{Header: http.Header{}})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if err == nil && result.Authenticated != tt.wantAuth {
				t.Errorf("Authenticated = %v, want %v", result.Authenticated, tt.wantAuth)
			}
			for i, a := range tt.auths {
				if a.calls != tt.wantCalls[i] {
					t.Errorf("authenticator %d called %d times, want %d", i, a.calls, tt.wantCalls[i])
				}
			}
		})
	}
}

func TestCompositeAuthenticator_DropsNil(t *testing.T) {
	c := NewCompositeAuthenticator(nil, &stubAuth{supports: true}, nil)
	if len(c.Authenticators) != 1 {
		t.Errorf("len = %d, want 1", len(c.Authenticators))
	}
	if !c.Supports(context.Background(), &Request{}) {
		t.Error("Supports() = false")
	}
}
