package auth

import (
	"net/http/httptest"
	"testing"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	a := New("test-secret", 60)
	hash, err := a.HashPassword("operator-secret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !a.CheckPassword(hash, "operator-secret") {
		t.Error("correct password rejected")
	}
	if a.CheckPassword(hash, "wrong") {
		t.Error("wrong password accepted")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	a := New("test-secret", 60)
	token, err := a.GenerateToken("CertNode")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := a.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Operator != "CertNode" || claims.Role != RoleOperator {
		t.Errorf("claims = %+v", claims)
	}

	other := New("different-secret", 60)
	if _, err := other.ValidateToken(token); err == nil {
		t.Error("token signed with another secret must not validate")
	}
}

func TestExtractClaims(t *testing.T) {
	a := New("test-secret", 60)
	token, _ := a.GenerateToken("CertNode")

	r := httptest.NewRequest("GET", "/", nil)
	if a.ExtractClaims(r) != nil {
		t.Error("no header should yield nil claims")
	}

	r.Header.Set("Authorization", "Bearer "+token)
	if claims := a.ExtractClaims(r); claims == nil || claims.Operator != "CertNode" {
		t.Errorf("bearer token not extracted: %+v", claims)
	}

	r.Header.Set("Authorization", "Basic abc")
	if a.ExtractClaims(r) != nil {
		t.Error("non-bearer scheme should yield nil claims")
	}
}
