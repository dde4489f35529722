package auth

import (
	"strings"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewManager("s3cret", "legacy-portal")
	token, err := m.IssueToken(42, "alice", 2, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse(): %v", err)
	}
	if claims.AccountID != 42 || claims.Username != "alice" || !claims.IsAdmin() {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestParseRejects(t *testing.T) {
	m := NewManager("s3cret", "legacy-portal")

	expired, _ := m.IssueToken(1, "bob", 0, -time.Minute)
	otherKey, _ := NewManager("other", "legacy-portal").IssueToken(1, "bob", 0, time.Hour)
	otherIssuer, _ := NewManager("s3cret", "elsewhere").IssueToken(1, "bob", 0, time.Hour)
	noAccount, _ := m.IssueToken(0, "ghost", 0, time.Hour)

	for name, token := range map[string]string{
		"expired":      expired,
		"wrong key":    otherKey,
		"wrong issuer": otherIssuer,
		"no account":   noAccount,
		"garbage":      "not.a.token",
	} {
		if _, err := m.Parse(token); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(hash, "$2y$") {
		t.Errorf("hash %q lacks $2y$ prefix", hash)
	}
	if !CheckPassword(hash, "hunter22") || CheckPassword(hash, "hunter23") {
		t.Error("password check mismatch")
	}
	if !CheckPassword("$2a$"+strings.TrimPrefix(hash, "$2y$"), "hunter22") {
		t.Error("$2a$ hash should verify")
	}
	if _, err := HashPassword("short"); err != ErrPasswordTooShort {
		t.Errorf("expected too short error, got %v", err)
	}
	if CheckPassword("", "anything") {
		t.Error("empty hash must not verify")
	}
}
