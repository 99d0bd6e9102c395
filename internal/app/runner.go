package app

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/cmorales95/defishell/internal/cache"
	"github.com/cmorales95/defishell/internal/config"
	clierr "github.com/cmorales95/defishell/internal/errors"
	"github.com/cmorales95/defishell/internal/fiber"
	"github.com/cmorales95/defishell/internal/httpx"
	"github.com/cmorales95/defishell/internal/model"
	"github.com/cmorales95/defishell/internal/out"
	"github.com/cmorales95/defishell/internal/protocols"
	"github.com/cmorales95/defishell/internal/resolver"
	"github.com/cmorales95/defishell/internal/schema"
	"github.com/cmorales95/defishell/internal/session"
	"github.com/cmorales95/defishell/internal/version"
)

type Runner struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

func NewRunner() *Runner {
	return NewRunnerWithIO(os.Stdin, os.Stdout, os.Stderr)
}

func NewRunnerWithIO(stdin io.Reader, stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
	}
}

// runtimeState is the per-invocation wiring: config, the command registry,
// the resolver, and the session snapshot the dispatcher threads through
// invocations. The session pointer is replaced, never mutated.
type runtimeState struct {
	runner   *Runner
	flags    config.GlobalFlags
	settings config.Settings
	log      *zap.Logger
	cache    *cache.Store
	history  *session.Store
	reg      *fiber.Registry
	res      *resolver.Resolver
	sess     *session.Context

	lastSuggestions []model.Suggestion
	quitRequested   bool
	clearRequested  bool
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r, log: zap.NewNop()}
	root := state.newRootCommand()
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := normalizeRunError(root.Execute())
	state.close()
	if err == nil {
		return 0
	}
	state.renderError(err)
	return clierr.ExitCode(err)
}

func (s *runtimeState) close() {
	if s.cache != nil {
		_ = s.cache.Close()
	}
	if s.history != nil {
		_ = s.history.Close()
	}
	_ = s.log.Sync()
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Protocol-aware DeFi command shell",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
			}
			s.settings = settings
			s.log = newLogger(settings)

			path := trimRootPath(cmd.CommandPath())
			if s.reg == nil {
				if err := s.initRegistry(path); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})
	cmd.PersistentFlags().SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	cmd.PersistentFlags().BoolVar(&s.flags.JSON, "json", false, "Output JSON (default)")
	cmd.PersistentFlags().BoolVar(&s.flags.Plain, "plain", false, "Output plain text")
	cmd.PersistentFlags().StringVar(&s.flags.Select, "select", "", "Select fields from data (comma-separated)")
	cmd.PersistentFlags().BoolVar(&s.flags.ResultsOnly, "results-only", false, "Output only data payload")
	cmd.PersistentFlags().StringVar(&s.flags.EnableCommands, "enable-commands", "", "Allowlist shell commands (comma-separated)")
	cmd.PersistentFlags().StringVar(&s.flags.Protocol, "protocol", "", "Bind unscoped commands to this protocol")
	cmd.PersistentFlags().Float64Var(&s.flags.FuzzyThreshold, "fuzzy-threshold", 0, "Minimum similarity for fuzzy suggestions (0,1]")
	cmd.PersistentFlags().StringVar(&s.flags.Timeout, "timeout", "", "Provider request timeout")
	cmd.PersistentFlags().IntVar(&s.flags.Retries, "retries", -1, "Retries per provider request")
	cmd.PersistentFlags().StringVar(&s.flags.MaxStale, "max-stale", "", "Maximum cache staleness accepted on reads")
	cmd.PersistentFlags().BoolVar(&s.flags.NoStale, "no-stale", false, "Reject stale cache entries")
	cmd.PersistentFlags().BoolVar(&s.flags.NoCache, "no-cache", false, "Disable cache reads and writes")
	cmd.PersistentFlags().BoolVar(&s.flags.Debug, "debug", false, "Enable debug logging to stderr")
	cmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")

	cmd.AddCommand(s.newREPLCommand())
	cmd.AddCommand(s.newExecCommand())
	cmd.AddCommand(s.newCommandsCommand())
	cmd.AddCommand(s.newProtocolsCommand())
	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(s.newHistoryCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// initRegistry builds the command registry: the core pool, the alias pool,
// then every protocol plugin. A plugin registration failure aborts startup.
func (s *runtimeState) initRegistry(path string) error {
	reg := fiber.NewRegistry(s.log)
	if err := s.registerCoreCommands(reg); err != nil {
		return err
	}
	if err := registerAliasCommands(reg); err != nil {
		return err
	}

	if s.settings.CacheEnabled && shouldOpenCache(path) && s.cache == nil {
		store, err := cache.Open(s.settings.CachePath, s.settings.CacheLockPath)
		if err != nil {
			return clierr.Wrap(clierr.CodeInternal, "open cache", err)
		}
		s.cache = store
	}
	if shouldOpenHistory(path) && s.history == nil {
		store, err := session.OpenStore(s.settings.HistoryPath, s.settings.HistoryLockPath)
		if err != nil {
			return clierr.Wrap(clierr.CodeInternal, "open history store", err)
		}
		s.history = store
	}

	deps := protocols.Deps{
		HTTP:     httpx.New(s.settings.Timeout, s.settings.Retries),
		Cache:    s.cache,
		Settings: s.settings,
		Logger:   s.log,
		Now:      s.runner.now,
	}
	for _, p := range DefaultPlugins() {
		if err := p.Register(reg, deps); err != nil {
			return clierr.Wrap(clierr.CodeRegistration, fmt.Sprintf("register protocol %s", p.ID()), err)
		}
	}

	s.reg = reg
	s.res = resolver.New(reg, s.log)
	s.sess = session.New()
	return nil
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func (s *runtimeState) newREPLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start the interactive shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runREPL()
		},
	}
}

func (s *runtimeState) newExecCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <input>...",
		Short: "Dispatch one shell input and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.dispatchLine(strings.Join(args, " "))
		},
	}
}

func (s *runtimeState) newCommandsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List every registered command",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.emitPlain("commands", s.commandSummaries())
		},
	}
}

func (s *runtimeState) newProtocolsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "protocols",
		Short: "List registered protocol fibers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.emitPlain("protocols", s.protocolSummaries())
		},
	}
}

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [protocol]",
		Short: "Print machine-readable registry schema",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			protocolID := ""
			if len(args) > 0 {
				protocolID = args[0]
			}
			data, err := schema.Build(s.reg, protocolID)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "build schema", err)
			}
			return s.emitPlain("schema", data)
		},
	}
}

func (s *runtimeState) newHistoryCommand() *cobra.Command {
	var limit int
	var failedOnly bool
	var sessionID string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List persisted invocation history, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := s.history.List(sessionID, limit, failedOnly)
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "read history", err)
			}
			return s.emitPlain("history", records)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum records to return")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only failed invocations")
	cmd.Flags().StringVar(&sessionID, "session", "", "Restrict to one session id")
	return cmd
}

func (s *runtimeState) commandSummaries() []model.CommandSummary {
	cmds := s.reg.AllCommands()
	outSummaries := make([]model.CommandSummary, 0, len(cmds))
	for _, cmd := range cmds {
		if cmd.ID == "identity" {
			continue
		}
		outSummaries = append(outSummaries, model.CommandSummary{
			ID:          cmd.ID,
			Scope:       cmd.Scope.String(),
			Protocol:    cmd.Protocol,
			Aliases:     cmd.Aliases,
			Description: cmd.Description,
		})
	}
	return outSummaries
}

func (s *runtimeState) protocolSummaries() []model.ProtocolSummary {
	ids := s.reg.Protocols()
	outSummaries := make([]model.ProtocolSummary, 0, len(ids))
	for _, pid := range ids {
		f, ok := s.reg.Fiber(pid)
		if !ok {
			continue
		}
		// identity is an implementation detail, not a user command
		outSummaries = append(outSummaries, model.ProtocolSummary{
			ID:          f.ID,
			Name:        f.Name,
			Description: f.Description,
			Commands:    f.Len() - 1,
		})
	}
	return outSummaries
}

// emitPlain renders a success envelope for host commands that bypass the
// dispatcher (listings, schema, history).
func (s *runtimeState) emitPlain(commandPath string, data any) error {
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: true,
		Data:    data,
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			Cache:     cacheMetaBypass(),
		},
	}
	return out.Render(s.runner.stdout, env, s.settings)
}

// emitDispatch renders a success envelope for one dispatched invocation,
// carrying the resolution metadata.
func (s *runtimeState) emitDispatch(rc resolver.ResolvedCommand, value any) error {
	meta := model.EnvelopeMeta{
		RequestID: newRequestID(),
		Timestamp: s.runner.now().UTC(),
		Command:   rc.Command.ID,
		Protocol:  rc.Protocol,
		Method:    rc.Method.String(),
		Cache:     cacheMetaBypass(),
	}
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: true,
		Data:    value,
		Meta:    meta,
	}
	return out.Render(s.runner.stdout, env, s.settings)
}

func (s *runtimeState) renderError(err error) {
	code := clierr.ExitCode(err)
	typ := "internal_error"
	message := err.Error()
	if cErr, ok := clierr.As(err); ok {
		message = cErr.Message
		if cErr.Cause != nil {
			message = fmt.Sprintf("%s: %v", cErr.Message, cErr.Cause)
		}
		switch cErr.Code {
		case clierr.CodeUsage:
			typ = "usage_error"
		case clierr.CodeAuth:
			typ = "auth_error"
		case clierr.CodeRateLimited:
			typ = "rate_limited"
		case clierr.CodeUnavailable:
			typ = "provider_unavailable"
		case clierr.CodeUnsupported:
			typ = "unsupported"
		case clierr.CodeRegistration:
			typ = "registration_error"
		case clierr.CodeNoCommand:
			typ = "no_command"
		case clierr.CodeBlocked:
			typ = "command_blocked"
		}
	}

	settings := s.settings
	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	settings.ResultsOnly = false
	settings.SelectFields = nil

	var data any = []any{}
	if len(s.lastSuggestions) > 0 {
		data = s.lastSuggestions
	}
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Data:    data,
		Error: &model.ErrorBody{
			Code:    code,
			Type:    typ,
			Message: message,
		},
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   version.CLIName,
			Cache:     cacheMetaBypass(),
		},
	}
	_ = out.Render(s.runner.stderr, env, settings)
}

func newLogger(settings config.Settings) *zap.Logger {
	if !settings.Debug {
		return zap.NewNop()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func newRequestID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func cacheMetaBypass() model.CacheStatus {
	return model.CacheStatus{Status: "bypass", AgeMS: 0, Stale: false}
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

func shouldOpenCache(commandPath string) bool {
	switch normalizeCommandPath(commandPath) {
	case "repl", "exec":
		return true
	default:
		return false
	}
}

func shouldOpenHistory(commandPath string) bool {
	switch normalizeCommandPath(commandPath) {
	case "repl", "exec", "history":
		return true
	default:
		return false
	}
}

func normalizeCommandPath(commandPath string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(commandPath))), " ")
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
	}
	return clierr.Wrap(clierr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"required flag(s)",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
		"invalid args",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func parsePositiveInt(v string) (int, bool) {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
