package user

import (
	"errors"
	"testing"
)

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		password string
		wantErr  bool
	}{
		{"abcdEFGH", false},
		{"abcdEFG", true},
		{"abcdefgh", true},
		{"ABCDEFGH", true},
		{"ñandúSUR", false},
		{"ñññññÑÑÑ", true},
		{"ñññññÑÑA", true},
		{"ÉÉÉÉÉaaa", true},
	}
	for _, tc := range cases {
		err := ValidatePassword(tc.password)
		if (err != nil) != tc.wantErr {
			t.Errorf("ValidatePassword(%q) err = %v, wantErr %v", tc.password, err, tc.wantErr)
		}
	}
}

func TestRegistrationValidateOrder(t *testing.T) {
	missing := Registration{Email: "a@b.c", Password: "abcdEFGH", ConfirmPassword: "abcdEFGH"}
	if err := missing.Validate(); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected missing fields, got %v", err)
	}

	mismatch := Registration{Email: "a@b.c", Username: "ana", Password: "abcdEFGH", ConfirmPassword: "abcdEFGh"}
	if err := mismatch.Validate(); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}

	weak := Registration{Email: "a@b.c", Username: "ana", Password: "abc", ConfirmPassword: "abc"}
	if err := weak.Validate(); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected weak password, got %v", err)
	}

	ok := Registration{Email: "a@b.c", Username: "ana", Password: "abcdEFGH", ConfirmPassword: "abcdEFGH"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid registration, got %v", err)
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Ana@Example.COM "); got != "ana@example.com" {
		t.Fatalf("NormalizeEmail = %q", got)
	}
}
