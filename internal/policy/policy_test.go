package policy

import (
	"testing"

	clierr "github.com/cmorales95/defishell/internal/errors"
)

func TestCheckCommandAllowed(t *testing.T) {
	if err := CheckCommandAllowed(nil, "swap"); err != nil {
		t.Fatalf("empty allowlist must allow everything: %v", err)
	}
	if err := CheckCommandAllowed([]string{"help", "swap"}, "swap"); err != nil {
		t.Fatalf("listed command must pass: %v", err)
	}
	err := CheckCommandAllowed([]string{"help", "quote"}, "connect")
	cliErr, ok := clierr.As(err)
	if !ok || cliErr.Code != clierr.CodeBlocked {
		t.Fatalf("expected blocked error, got %v", err)
	}
}

func TestCheckCommandAllowedNormalizes(t *testing.T) {
	if err := CheckCommandAllowed([]string{" Swap "}, "swap"); err != nil {
		t.Fatalf("allowlist entries must compare case- and space-insensitively: %v", err)
	}
	if err := CheckCommandAllowed([]string{"swap"}, "SWAP"); err != nil {
		t.Fatalf("command ids must compare case-insensitively: %v", err)
	}
}
