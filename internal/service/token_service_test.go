package service

import (
	"errors"
	"testing"
	"time"
)

func TestTokenServiceRoundTripAndIsolation(t *testing.T) {
	tokens := NewTokenService("staff-secret", "customer-secret")

	staffToken, _, err := tokens.IssueStaffToken("staff-1", "m-1", "barista", time.Hour)
	if err != nil {
		t.Fatalf("issue staff token failed: %v", err)
	}
	claims, err := tokens.ParseStaffToken(staffToken)
	if err != nil {
		t.Fatalf("parse staff token failed: %v", err)
	}
	if claims.StaffID != "staff-1" || claims.MerchantID != "m-1" || claims.Role != "barista" {
		t.Fatalf("unexpected staff claims: %+v", claims)
	}
	if _, err := tokens.ParseCustomerToken(staffToken); err == nil {
		t.Fatalf("staff token must not verify with the customer secret")
	}

	customerToken, _, err := tokens.IssueCustomerToken("cust-a", time.Hour)
	if err != nil {
		t.Fatalf("issue customer token failed: %v", err)
	}
	customer, err := tokens.ParseCustomerToken(customerToken)
	if err != nil || customer.CustomerID != "cust-a" {
		t.Fatalf("unexpected customer claims: %+v err=%v", customer, err)
	}

	expired, _, err := tokens.IssueCustomerToken("cust-a", -time.Minute)
	if err != nil {
		t.Fatalf("issue expired token failed: %v", err)
	}
	if _, err := tokens.ParseCustomerToken(expired); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestTokenServiceWithoutSecret(t *testing.T) {
	tokens := NewTokenService("", "")
	if _, _, err := tokens.IssueStaffToken("s", "m", "barista", time.Hour); !errors.Is(err, ErrTokenSecretMissing) {
		t.Fatalf("expected ErrTokenSecretMissing, got %v", err)
	}
	if _, err := tokens.ParseCustomerToken("x"); !errors.Is(err, ErrTokenSecretMissing) {
		t.Fatalf("expected ErrTokenSecretMissing, got %v", err)
	}
}
