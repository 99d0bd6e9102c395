package schema

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/cmorales95/defishell/internal/command"
	"github.com/cmorales95/defishell/internal/fiber"
)

func noop(ctx context.Context, req command.Request) (command.Result, error) {
	return command.Result{}, nil
}

func buildRegistry(t *testing.T) *fiber.Registry {
	t.Helper()
	reg := fiber.NewRegistry(zap.NewNop())
	if err := reg.RegisterCore(command.Command{ID: "help", Scope: command.ScopeCore, Aliases: []string{"h"}, Run: noop}); err != nil {
		t.Fatalf("register core: %v", err)
	}
	if err := reg.RegisterAlias(command.Command{ID: "swap", Scope: command.ScopeAlias, Run: noop}); err != nil {
		t.Fatalf("register alias: %v", err)
	}
	f := fiber.NewFiber("uniswap-v4", "Uniswap v4", "swap quotes")
	if err := f.Add(command.Command{ID: "swap", Scope: command.ScopeProtocol, Protocol: "uniswap-v4", Aliases: []string{"s"}, Run: noop}); err != nil {
		t.Fatalf("add to fiber: %v", err)
	}
	if err := reg.RegisterFiber(f); err != nil {
		t.Fatalf("register fiber: %v", err)
	}
	return reg
}

func TestBuildFullDump(t *testing.T) {
	s, err := Build(buildRegistry(t), "")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(s.Core) != 1 || s.Core[0].ID != "help" {
		t.Fatalf("unexpected core pool: %+v", s.Core)
	}
	if len(s.AliasPool) != 1 || s.AliasPool[0].ID != "swap" {
		t.Fatalf("unexpected alias pool: %+v", s.AliasPool)
	}
	if len(s.Fibers) != 1 || s.Fibers[0].ID != "uniswap-v4" {
		t.Fatalf("unexpected fibers: %+v", s.Fibers)
	}
	// identity plus swap
	if len(s.Fibers[0].Commands) != 2 {
		t.Fatalf("unexpected fiber commands: %+v", s.Fibers[0].Commands)
	}
	if s.AliasTable["h"] != "help" {
		t.Fatalf("global alias missing: %v", s.AliasTable)
	}
	if s.AliasTable["uniswap-v4:s"] != "swap" {
		t.Fatalf("namespaced alias missing: %v", s.AliasTable)
	}
}

func TestBuildSingleProtocol(t *testing.T) {
	s, err := Build(buildRegistry(t), "uniswap-v4")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(s.Core) != 0 || len(s.Fibers) != 1 {
		t.Fatalf("expected only the requested fiber, got %+v", s)
	}
	if _, ok := s.AliasTable["h"]; ok {
		t.Fatal("global aliases must not appear in a protocol-scoped dump")
	}
	if s.AliasTable["uniswap-v4:s"] != "swap" {
		t.Fatalf("namespaced alias missing: %v", s.AliasTable)
	}
}

func TestBuildUnknownProtocol(t *testing.T) {
	if _, err := Build(buildRegistry(t), "nope"); err == nil {
		t.Fatal("expected error for unknown protocol")
	}
}
