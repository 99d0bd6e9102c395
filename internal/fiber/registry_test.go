package fiber

import (
	"context"
	"testing"

	"github.com/cmorales95/defishell/internal/command"
	clierr "github.com/cmorales95/defishell/internal/errors"
)

func protoCmd(id, protocol string, aliases ...string) command.Command {
	return command.Command{
		ID:       id,
		Scope:    command.ScopeProtocol,
		Protocol: protocol,
		Aliases:  aliases,
		Run: func(ctx context.Context, req command.Request) (command.Result, error) {
			return command.Result{Value: req.Input}, nil
		},
	}
}

func coreCmd(id string, aliases ...string) command.Command {
	return command.Command{
		ID:      id,
		Scope:   command.ScopeCore,
		Aliases: aliases,
		Run: func(ctx context.Context, req command.Request) (command.Result, error) {
			return command.Result{Value: req.Input}, nil
		},
	}
}

func TestNewFiberSeedsIdentity(t *testing.T) {
	f := NewFiber("uniswap-v4", "Uniswap v4", "swaps")
	ident, ok := f.Command(command.IdentityID)
	if !ok {
		t.Fatal("fiber missing identity command")
	}
	if ident.Scope != command.ScopeProtocol || ident.Protocol != "uniswap-v4" {
		t.Fatalf("identity tagged wrong: %s %q", ident.Scope, ident.Protocol)
	}
	if f.Len() != 1 {
		t.Fatalf("expected only identity, got %d commands", f.Len())
	}
}

func TestFiberAddRejectsMisregistration(t *testing.T) {
	f := NewFiber("uniswap-v4", "Uniswap v4", "swaps")

	err := f.Add(coreCmd("help"))
	if err == nil {
		t.Fatal("expected scope mismatch error")
	}
	cliErr, ok := clierr.As(err)
	if !ok || cliErr.Code != clierr.CodeRegistration {
		t.Fatalf("expected registration error, got %v", err)
	}

	if err := f.Add(protoCmd("swap", "jupiter")); err == nil {
		t.Fatal("expected protocol mismatch error")
	}
}

func TestFiberAddOverwritesByID(t *testing.T) {
	f := NewFiber("jupiter", "Jupiter", "solana swaps")
	if err := f.Add(protoCmd("swap", "jupiter", "s")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	replacement := protoCmd("swap", "jupiter")
	replacement.Description = "v2"
	if err := f.Add(replacement); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if f.Len() != 2 {
		t.Fatalf("expected identity plus one command, got %d", f.Len())
	}
	got, _ := f.Command("swap")
	if got.Description != "v2" {
		t.Fatalf("expected replacement to win, got %q", got.Description)
	}
}

func TestRegisterCoreValidatesScope(t *testing.T) {
	reg := NewRegistry(nil)
	if err := reg.RegisterCore(protoCmd("swap", "uniswap-v4")); err == nil {
		t.Fatal("expected scope error")
	}
	if err := reg.RegisterCore(coreCmd("help", "h")); err != nil {
		t.Fatalf("RegisterCore failed: %v", err)
	}
	if id, ok := reg.LookupAlias("h"); !ok || id != "help" {
		t.Fatalf("global alias not registered: %q %v", id, ok)
	}
}

func TestRegisterFiberNamespacesAliases(t *testing.T) {
	reg := NewRegistry(nil)
	f := NewFiber("uniswap-v4", "Uniswap v4", "swaps")
	if err := f.Add(protoCmd("swap", "uniswap-v4", "s", "exchange")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := reg.RegisterFiber(f); err != nil {
		t.Fatalf("RegisterFiber failed: %v", err)
	}

	if _, ok := reg.LookupAlias("s"); ok {
		t.Fatal("fiber alias leaked into the global namespace")
	}
	if id, ok := reg.LookupAlias("uniswap-v4:s"); !ok || id != "swap" {
		t.Fatalf("namespaced alias missing: %q %v", id, ok)
	}
	if id, ok := reg.LookupAlias("uniswap-v4:exchange"); !ok || id != "swap" {
		t.Fatalf("namespaced alias missing: %q %v", id, ok)
	}
}

func TestRegisterFiberRejectsDuplicateID(t *testing.T) {
	reg := NewRegistry(nil)
	if err := reg.RegisterFiber(NewFiber("aave-v3", "Aave", "lending")); err != nil {
		t.Fatalf("RegisterFiber failed: %v", err)
	}
	err := reg.RegisterFiber(NewFiber("aave-v3", "Aave again", "lending"))
	if err == nil {
		t.Fatal("expected duplicate fiber error")
	}
	cliErr, ok := clierr.As(err)
	if !ok || cliErr.Code != clierr.CodeRegistration {
		t.Fatalf("expected registration error, got %v", err)
	}
}

func TestAddToFiberPublishesNamespacedAlias(t *testing.T) {
	reg := NewRegistry(nil)
	if err := reg.RegisterFiber(NewFiber("lifi", "LI.FI", "bridging")); err != nil {
		t.Fatalf("RegisterFiber failed: %v", err)
	}
	if err := reg.AddToFiber("lifi", protoCmd("bridge", "lifi", "b")); err != nil {
		t.Fatalf("AddToFiber failed: %v", err)
	}
	if id, ok := reg.LookupAlias("lifi:b"); !ok || id != "bridge" {
		t.Fatalf("namespaced alias missing: %q %v", id, ok)
	}
	if err := reg.AddToFiber("missing", protoCmd("x", "missing")); err == nil {
		t.Fatal("expected unknown fiber error")
	}
	if err := reg.AddToFiber("lifi", coreCmd("help")); err == nil {
		t.Fatal("expected scope mismatch error")
	}
}

func TestAliasCollisionLastWriteWins(t *testing.T) {
	reg := NewRegistry(nil)
	if err := reg.RegisterCore(coreCmd("help", "h")); err != nil {
		t.Fatalf("RegisterCore failed: %v", err)
	}
	if err := reg.RegisterCore(coreCmd("history", "h")); err != nil {
		t.Fatalf("RegisterCore failed: %v", err)
	}
	if id, _ := reg.LookupAlias("h"); id != "history" {
		t.Fatalf("expected last registration to win, got %q", id)
	}
}

func TestRegistryOrderingAndIntrospection(t *testing.T) {
	reg := NewRegistry(nil)
	if err := reg.RegisterCore(coreCmd("help")); err != nil {
		t.Fatalf("RegisterCore failed: %v", err)
	}
	if err := reg.RegisterCore(coreCmd("use")); err != nil {
		t.Fatalf("RegisterCore failed: %v", err)
	}
	aliasCmd := command.Command{ID: "swap", Scope: command.ScopeAlias, Run: func(ctx context.Context, req command.Request) (command.Result, error) {
		return command.Result{Value: req.Input}, nil
	}}
	if err := reg.RegisterAlias(aliasCmd); err != nil {
		t.Fatalf("RegisterAlias failed: %v", err)
	}
	uni := NewFiber("uniswap-v4", "Uniswap v4", "swaps")
	if err := uni.Add(protoCmd("swap", "uniswap-v4")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := reg.RegisterFiber(uni); err != nil {
		t.Fatalf("RegisterFiber failed: %v", err)
	}
	if err := reg.RegisterFiber(NewFiber("jupiter", "Jupiter", "solana swaps")); err != nil {
		t.Fatalf("RegisterFiber failed: %v", err)
	}

	protocols := reg.Protocols()
	if len(protocols) != 2 || protocols[0] != "uniswap-v4" || protocols[1] != "jupiter" {
		t.Fatalf("unexpected protocol order: %v", protocols)
	}

	all := reg.AllCommands()
	wantOrder := []string{"help", "use", "swap", "identity", "swap", "identity"}
	if len(all) != len(wantOrder) {
		t.Fatalf("expected %d commands, got %d", len(wantOrder), len(all))
	}
	for i, want := range wantOrder {
		if all[i].ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, all[i].ID)
		}
	}
}
