// Command ledgerctl runs one-off operator tasks against the portal database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"legacy-portal/internal/auth"
	"legacy-portal/internal/config"
	"legacy-portal/internal/database"
	"legacy-portal/internal/services/discount"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "ledgerctl:", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: ledgerctl <issue-code|token> [flags]")
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		usage(out)
		return fmt.Errorf("missing command")
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	switch args[0] {
	case "issue-code":
		return issueCode(cfg, args[1:], out)
	case "token":
		return token(cfg, args[1:], out)
	default:
		usage(out)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func issueCode(cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("issue-code", flag.ContinueOnError)
	accountID := fs.Int64("account", 0, "account id that will own the code")
	percent := fs.Int("percent", 10, "discount percent (1-100)")
	days := fs.Int("days", 7, "validity in days, 0 for no expiry")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *accountID <= 0 || *percent < 1 || *percent > 100 || *days < 0 {
		return fmt.Errorf("account must be positive, percent 1-100, days >= 0")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	store, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	engine := discount.NewEngine(rand.New(rand.NewSource(time.Now().UnixNano())), time.Now, logger)
	code, err := discount.NewService(store, engine, logger).Grant(ctx, *accountID, *percent, *days)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(code)
}

func token(cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	accountID := fs.Int64("account", 0, "account id")
	username := fs.String("username", "", "username claim")
	admin := fs.Int("admin", 0, "admin level claim")
	ttl := fs.Duration("ttl", cfg.TokenTTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *accountID <= 0 {
		return fmt.Errorf("account must be positive")
	}
	tok, err := auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer).IssueToken(*accountID, *username, *admin, *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, tok)
	return err
}
