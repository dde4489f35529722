package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"legacy-portal/internal/auth"
	"legacy-portal/internal/database"
)

func setEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ENV_FILE_PATH", filepath.Join(dir, "missing.env"))
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("JWT_ISSUER", "legacy-portal")
	dsn := "sqlite:" + filepath.Join(dir, "cli.db")
	t.Setenv("DATABASE_URL", dsn)
	return dsn
}

func TestTokenCommand(t *testing.T) {
	setEnv(t)
	var out bytes.Buffer
	if err := run([]string{"token", "-account", "42", "-username", "gm", "-admin", "3", "-ttl", "1h"}, &out); err != nil {
		t.Fatalf("token: %v", err)
	}
	claims, err := auth.NewManager("cli-secret", "legacy-portal").Parse(strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.AccountID != 42 || claims.Username != "gm" || claims.Admin != 3 {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.ExpiresAt == nil || time.Until(claims.ExpiresAt.Time) > time.Hour {
		t.Fatalf("unexpected expiry %v", claims.ExpiresAt)
	}
}

func TestIssueCodeUnknownAccount(t *testing.T) {
	setEnv(t)
	var out bytes.Buffer
	if err := run([]string{"issue-code", "-account", "7", "-percent", "15"}, &out); err == nil {
		t.Fatal("expected error for missing account")
	}
}

func TestIssueCodeValidatesFlags(t *testing.T) {
	setEnv(t)
	var out bytes.Buffer
	if err := run([]string{"issue-code", "-account", "1", "-percent", "0"}, &out); err == nil {
		t.Fatal("expected error for zero percent")
	}
	if err := run([]string{"bogus"}, &out); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestIssueCodeForExistingAccount(t *testing.T) {
	dsn := setEnv(t)
	seedAccount(t, dsn)

	var out bytes.Buffer
	if err := run([]string{"issue-code", "-account", "1", "-percent", "15", "-days", "0"}, &out); err != nil {
		t.Fatalf("issue-code: %v", err)
	}
	var code struct {
		Code      string     `json:"code"`
		Percent   int        `json:"percent"`
		ExpiresAt *time.Time `json:"expiresAt"`
	}
	if err := json.Unmarshal(out.Bytes(), &code); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	if !strings.HasPrefix(code.Code, "LEG-") || code.Percent != 15 || code.ExpiresAt != nil {
		t.Fatalf("unexpected code %+v", code)
	}
}

func seedAccount(t *testing.T, dsn string) {
	t.Helper()
	store, err := database.New(context.Background(), dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if _, err := store.CreateAccount(context.Background(), "player", "", 0); err != nil {
		t.Fatal(err)
	}
}
