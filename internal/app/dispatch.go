package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cmorales95/defishell/internal/command"
	clierr "github.com/cmorales95/defishell/internal/errors"
	"github.com/cmorales95/defishell/internal/model"
	"github.com/cmorales95/defishell/internal/policy"
	"github.com/cmorales95/defishell/internal/resolver"
	"github.com/cmorales95/defishell/internal/session"
)

// dispatchLine runs one shell input end to end: exact resolution, fuzzy
// fallback, the policy gate on the resolved id, invocation under the
// configured timeout, then the session transition and the history record.
// Every invocation appends exactly one record, success or failure.
func (s *runtimeState) dispatchLine(input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}
	s.lastSuggestions = nil

	token := firstToken(input)
	opts := s.resolverOptions()
	resolved, ok := s.res.Resolve(input, s.sess, opts)
	if !ok {
		return s.suggestOrFail(input, token, opts)
	}

	// The gate runs on the canonical id, so an allowlist naming "swap"
	// covers the alias spelling "s" as well.
	if err := policy.CheckCommandAllowed(s.settings.EnableCommands, resolved.Command.ID); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
	defer cancel()

	at := s.runner.now()
	res, invokeErr := resolved.Command.Run(ctx, command.Request{
		Args:     resolved.Args,
		Protocol: resolved.Protocol,
		Session:  s.sess,
	})
	next := command.NextContext(s.sess, resolved.Command, resolved.Protocol, at, res, invokeErr)
	s.appendHistory(next)
	s.sess = next

	if invokeErr != nil {
		return invokeErr
	}
	return s.emitDispatch(resolved, res.Value)
}

func (s *runtimeState) resolverOptions() resolver.Options {
	return resolver.Options{
		ExplicitProtocol:   s.settings.ExplicitProtocol,
		CommandDefaults:    s.settings.CommandDefaults,
		ProtocolPreference: s.settings.ProtocolPreference,
	}
}

// suggestOrFail turns a resolution miss into a no-command error, attaching
// fuzzy candidates when any clear the threshold.
func (s *runtimeState) suggestOrFail(input, token string, opts resolver.Options) error {
	matches := s.res.FuzzyResolve(input, s.sess, opts, s.settings.FuzzyThreshold)
	if len(matches) == 0 {
		return clierr.New(clierr.CodeNoCommand, fmt.Sprintf("no command matches %q", token))
	}
	suggestions := make([]model.Suggestion, 0, len(matches))
	for _, m := range matches {
		suggestions = append(suggestions, model.Suggestion{
			Command:    m.Command.ID,
			Protocol:   m.Protocol,
			Confidence: m.Confidence,
		})
	}
	s.lastSuggestions = suggestions
	return clierr.New(clierr.CodeNoCommand,
		fmt.Sprintf("no command matches %q, did you mean %q?", token, matches[0].Command.ID))
}

// appendHistory persists the record the transition just added. The store is
// best effort: a write failure degrades to in-memory history only.
func (s *runtimeState) appendHistory(next *session.Context) {
	if s.history == nil || next == nil || len(next.History) == 0 {
		return
	}
	rec := next.History[len(next.History)-1]
	if err := s.history.Append(next.ID, rec); err != nil {
		s.log.Warn("history append failed", zap.Error(err))
	}
}

func firstToken(input string) string {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}
