package auth

import (
	"testing"
	"time"
)

func TestHashVerifyRoundTrip(t *testing.T) {
	hash, err := Hash("s3cret")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	v := NewVerifier("")
	if !v.Verify("client-1", hash, "s3cret") {
		t.Fatal("expected matching token to verify")
	}
	if v.Verify("client-1", hash, "wrong") {
		t.Fatal("expected mismatched token to fail verification")
	}
}

func TestVerifyReattachToken(t *testing.T) {
	v := NewVerifier("shared-secret")
	tok, err := v.IssueReattachToken("client-1", time.Minute)
	if err != nil {
		t.Fatalf("IssueReattachToken: %v", err)
	}
	// storedHash is irrelevant on the JWT path.
	if !v.Verify("client-1", "irrelevant", tok) {
		t.Fatal("expected reattach token to verify")
	}
	if v.Verify("client-2", "irrelevant", tok) {
		t.Fatal("expected reattach token for a different client_id to fail")
	}
}

func TestVerifyExpiredReattachToken(t *testing.T) {
	v := NewVerifier("shared-secret")
	tok, err := v.IssueReattachToken("client-1", -time.Minute)
	if err != nil {
		t.Fatalf("IssueReattachToken: %v", err)
	}
	if v.Verify("client-1", "irrelevant", tok) {
		t.Fatal("expected expired reattach token to fail verification")
	}
}

func TestVerifyJWTDisabledWithoutSecret(t *testing.T) {
	v := NewVerifier("")
	hash, _ := Hash("plain-token")
	// A JWT-shaped string with no secret configured must fall through
	// to the bcrypt comparison, not be treated as a reattach token.
	if v.Verify("client-1", hash, "a.b.c") {
		t.Fatal("expected a JWT-shaped non-JWT string to fail bcrypt comparison")
	}
}

func TestLooksLikeJWT(t *testing.T) {
	cases := map[string]bool{
		"a.b.c":    true,
		"a.b":      false,
		"notatoken": false,
		"":         false,
	}
	for in, want := range cases {
		if got := looksLikeJWT(in); got != want {
			t.Errorf("looksLikeJWT(%q) = %v, want %v", in, got, want)
		}
	}
}
