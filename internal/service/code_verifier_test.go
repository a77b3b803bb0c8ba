package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/beanstamp/internal/constants"
)

func TestCodeVerifierResolveOutcomes(t *testing.T) {
	env := setupLoyaltyTestEnv(t)
	createTestCustomer(t, env, "cust-a")

	ticket, err := env.verifier.BeginVerification(context.Background(), "cust-a")
	if err != nil {
		t.Fatalf("begin verification failed: %v", err)
	}
	if ticket.ScanPayload != constants.ScanPayloadPrefix+"cust-a" {
		t.Fatalf("unexpected scan payload: %s", ticket.ScanPayload)
	}
	if len(ticket.BackupCode) != 6 {
		t.Fatalf("expected 6 digit backup code, got %q", ticket.BackupCode)
	}
	if got := ticket.ExpiresAt.Sub(ticket.IssuedAt); got != 60*time.Second {
		t.Fatalf("expected 60s window, got %v", got)
	}

	for _, token := range []string{ticket.ScanPayload, "cust-a", ticket.BackupCode} {
		verification, err := env.verifier.Resolve(context.Background(), token)
		if err != nil {
			t.Fatalf("resolve %q failed: %v", token, err)
		}
		if verification.CustomerID != "cust-a" || verification.SessionToken != ticket.SessionToken {
			t.Fatalf("unexpected verification for %q: %+v", token, verification)
		}
	}

	cases := []struct {
		token string
		want  error
	}{
		{"", ErrTokenMalformed},
		{"u:bad token!", ErrTokenMalformed},
		{"u:" + strings.Repeat("x", 80), ErrTokenMalformed},
		{"u:ghost", ErrCustomerUnknown},
		{otherBackupCode(ticket.BackupCode), ErrBackupCodeInvalid},
	}
	for _, tc := range cases {
		if _, err := env.verifier.Resolve(context.Background(), tc.token); !errors.Is(err, tc.want) {
			t.Fatalf("resolve %q: expected %v, got %v", tc.token, tc.want, err)
		}
	}

	env.setNow(ticket.ExpiresAt)
	if _, err := env.verifier.Resolve(context.Background(), ticket.ScanPayload); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired for scan payload, got %v", err)
	}
	if _, err := env.verifier.Resolve(context.Background(), ticket.BackupCode); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired for backup code, got %v", err)
	}
}

func TestCodeVerifierReissueRevokesPreviousSession(t *testing.T) {
	env := setupLoyaltyTestEnv(t)
	createTestCustomer(t, env, "cust-a")

	first, err := env.verifier.BeginVerification(context.Background(), "cust-a")
	if err != nil {
		t.Fatalf("first verification failed: %v", err)
	}
	env.setNow(first.IssuedAt.Add(10 * time.Second))
	second, err := env.verifier.BeginVerification(context.Background(), "cust-a")
	if err != nil {
		t.Fatalf("second verification failed: %v", err)
	}
	if first.SessionToken == second.SessionToken {
		t.Fatalf("expected a new session token")
	}

	if first.BackupCode != second.BackupCode {
		if _, err := env.verifier.Resolve(context.Background(), first.BackupCode); !errors.Is(err, ErrBackupCodeInvalid) {
			t.Fatalf("expected revoked backup code to be invalid, got %v", err)
		}
	}
	verification, err := env.verifier.Resolve(context.Background(), "cust-a")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if verification.SessionToken != second.SessionToken {
		t.Fatalf("expected latest session, got %s", verification.SessionToken)
	}
}

func TestCodeVerifierUnknownCustomerCannotBegin(t *testing.T) {
	env := setupLoyaltyTestEnv(t)
	if _, err := env.verifier.BeginVerification(context.Background(), "ghost"); !errors.Is(err, ErrCustomerUnknown) {
		t.Fatalf("expected ErrCustomerUnknown, got %v", err)
	}
	if _, err := env.verifier.Resolve(context.Background(), "ghost"); !errors.Is(err, ErrCustomerUnknown) {
		t.Fatalf("expected ErrCustomerUnknown on resolve, got %v", err)
	}
}

func TestCodeVerifierPurgeExpired(t *testing.T) {
	env := setupLoyaltyTestEnv(t)
	createTestCustomer(t, env, "cust-a")
	ticket, err := env.verifier.BeginVerification(context.Background(), "cust-a")
	if err != nil {
		t.Fatalf("begin verification failed: %v", err)
	}

	env.setNow(ticket.ExpiresAt.Add(2 * time.Hour))
	purged, err := env.verifier.PurgeExpired(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged session, got %d", purged)
	}
}

func otherBackupCode(code string) string {
	if code == "123456" {
		return "654321"
	}
	return "123456"
}
