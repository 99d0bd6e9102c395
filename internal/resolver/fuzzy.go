package resolver

import (
	"sort"

	"github.com/cmorales95/defishell/internal/command"
	"github.com/cmorales95/defishell/internal/session"
)

// DefaultFuzzyThreshold is the minimum similarity kept when the caller does
// not supply one.
const DefaultFuzzyThreshold = 0.6

// FuzzyResolve ranks approximate matches for an input no exact path matched.
// Core commands are always candidates. Outside any fiber, alias commands and
// every fiber's commands join the pool; inside a fiber only that fiber's
// commands do, so isolation holds on the fuzzy path too. Fiber identities are
// never suggested. A command is scored against its id and each alias
// independently and kept once per spelling that clears the threshold.
func (r *Resolver) FuzzyResolve(input string, sess *session.Context, opts Options, threshold float64) []ResolvedCommand {
	if threshold <= 0 {
		threshold = DefaultFuzzyThreshold
	}
	token, args := tokenize(input)
	if token == "" {
		return nil
	}
	active := ""
	if sess != nil {
		active = sess.ActiveProtocol
	}

	matches := make([]ResolvedCommand, 0)
	score := func(cmd command.Command, protocol string) {
		for _, name := range append([]string{cmd.ID}, cmd.Aliases...) {
			s := Similarity(token, name)
			if s < threshold {
				continue
			}
			matches = append(matches, ResolvedCommand{
				Command:    cmd,
				Protocol:   protocol,
				Method:     MethodFuzzy,
				Confidence: s,
				Args:       args,
			})
		}
	}

	for _, cmd := range r.reg.CoreCommands() {
		score(cmd, "")
	}
	if active == "" {
		for _, cmd := range r.reg.AliasCommands() {
			score(cmd, r.bindAliasProtocol(cmd.ID, "", opts))
		}
		for _, fiberID := range r.reg.Protocols() {
			f, ok := r.reg.Fiber(fiberID)
			if !ok {
				continue
			}
			for _, cmd := range f.Commands() {
				if cmd.ID == command.IdentityID {
					continue
				}
				score(cmd, fiberID)
			}
		}
	} else if f, ok := r.reg.Fiber(active); ok {
		for _, cmd := range f.Commands() {
			if cmd.ID == command.IdentityID {
				continue
			}
			score(cmd, active)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})
	return matches
}
