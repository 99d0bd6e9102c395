package app

import (
	"github.com/cmorales95/defishell/internal/protocols"
	"github.com/cmorales95/defishell/internal/protocols/aave"
	"github.com/cmorales95/defishell/internal/protocols/jupiter"
	"github.com/cmorales95/defishell/internal/protocols/lifi"
	"github.com/cmorales95/defishell/internal/protocols/uniswap"
)

// DefaultPlugins is the built-in protocol set. Registration order decides the
// first-registered tie break the resolver uses for unbound alias commands.
func DefaultPlugins() []protocols.Plugin {
	return []protocols.Plugin{
		uniswap.Plugin{},
		jupiter.Plugin{},
		lifi.Plugin{},
		aave.Plugin{},
	}
}
