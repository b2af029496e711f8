package auth

import "testing"

func TestStreamTokenRoundTrip(t *testing.T) {
	issuer := NewIssuer("test-secret")

	token, err := issuer.GenerateStreamToken("client-1")
	if err != nil {
		t.Fatalf("GenerateStreamToken() error = %v", err)
	}

	claims, err := issuer.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.ClientID != "client-1" {
		t.Errorf("ClientID = %q, want client-1", claims.ClientID)
	}
	if claims.Role != "stream" {
		t.Errorf("Role = %q, want stream", claims.Role)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	token, err := NewIssuer("secret-a").GenerateStreamToken("client-1")
	if err != nil {
		t.Fatalf("GenerateStreamToken() error = %v", err)
	}

	if _, err := NewIssuer("secret-b").ValidateToken(token); err == nil {
		t.Error("token signed with another secret validated")
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	if _, err := NewIssuer("secret").ValidateToken("not-a-token"); err == nil {
		t.Error("garbage token validated")
	}
}
