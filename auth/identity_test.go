package auth

import (
	"testing"
	"time"
)

func TestIdentity(t *testing.T) {
	id := &Identity{Principal: "ops", Roles: []string{"admin"}, Method: MethodJWT}
	if !id.HasRole("admin") || id.HasRole("viewer") {
		t.Errorf("HasRole mismatch for %v", id.Roles)
	}
	if id.IsExpired() {
		t.Error("zero ExpiresAt must not expire")
	}
	id.ExpiresAt = time.Now().Add(-time.Second)
	if !id.IsExpired() {
		t.Error("past ExpiresAt should be expired")
	}
	if id.IsAnonymous() {
		t.Error("named identity is not anonymous")
	}

	var none *Identity
	if none.HasRole("admin") || !none.IsAnonymous() {
		t.Error("nil identity should have no roles and be anonymous")
	}
	if !Anonymous().IsAnonymous() {
		t.Error("Anonymous() should be anonymous")
	}
}
