package wallet

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/cmorales95/defishell/internal/errors"
)

const (
	KindEVM    = "evm"
	KindSolana = "solana"
)

// Info is the read-only wallet state carried on a session. Resolution never
// inspects it; commands read it and connect/disconnect replace it wholesale.
type Info struct {
	Address     string `json:"address,omitempty"`
	Kind        string `json:"kind,omitempty"`
	Connected   bool   `json:"connected"`
	ConnectedAt string `json:"connected_at,omitempty"`
}

// Connect validates the address, normalizes it, and returns the connected
// state. EVM addresses are rewritten to their EIP-55 checksum form.
func Connect(address string, now time.Time) (Info, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Info{}, clierr.New(clierr.CodeUsage, "wallet address is required")
	}

	if strings.HasPrefix(address, "0x") || strings.HasPrefix(address, "0X") {
		if !common.IsHexAddress(address) {
			return Info{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid EVM address: %s", address))
		}
		return Info{
			Address:     common.HexToAddress(address).Hex(),
			Kind:        KindEVM,
			Connected:   true,
			ConnectedAt: now.UTC().Format(time.RFC3339),
		}, nil
	}

	if !isBase58(address) || len(address) < 32 || len(address) > 44 {
		return Info{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid wallet address: %s", address))
	}
	return Info{
		Address:     address,
		Kind:        KindSolana,
		Connected:   true,
		ConnectedAt: now.UTC().Format(time.RFC3339),
	}, nil
}

// Disconnect returns the empty, disconnected state.
func Disconnect() Info {
	return Info{}
}

func isBase58(v string) bool {
	for _, r := range v {
		switch {
		case r >= '1' && r <= '9':
		case r >= 'A' && r <= 'H':
		case r >= 'J' && r <= 'N':
		case r >= 'P' && r <= 'Z':
		case r >= 'a' && r <= 'k':
		case r >= 'm' && r <= 'z':
		default:
			return false
		}
	}
	return len(v) > 0
}
