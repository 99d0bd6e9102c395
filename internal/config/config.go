package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type GlobalFlags struct {
	ConfigPath     string
	JSON           bool
	Plain          bool
	Select         string
	ResultsOnly    bool
	EnableCommands string
	Protocol       string
	FuzzyThreshold float64
	Timeout        string
	Retries        int
	MaxStale       string
	NoStale        bool
	NoCache        bool
	Debug          bool
}

type Settings struct {
	OutputMode         string
	SelectFields       []string
	ResultsOnly        bool
	EnableCommands     []string
	ExplicitProtocol   string
	FuzzyThreshold     float64
	ProtocolPreference []string
	CommandDefaults    map[string]string
	Timeout            time.Duration
	Retries            int
	MaxStale           time.Duration
	NoStale            bool
	CacheEnabled       bool
	CachePath          string
	CacheLockPath      string
	HistoryPath        string
	HistoryLockPath    string
	LogDir             string
	Debug              bool
	UniswapAPIKey      string
	JupiterAPIKey      string
}

type fileConfig struct {
	Output             string            `yaml:"output"`
	Timeout            string            `yaml:"timeout"`
	Retries            *int              `yaml:"retries"`
	Debug              *bool             `yaml:"debug"`
	FuzzyThreshold     *float64          `yaml:"fuzzy_threshold"`
	ProtocolPreference []string          `yaml:"protocol_preference"`
	CommandDefaults    map[string]string `yaml:"command_defaults"`
	Cache              struct {
		Enabled  *bool  `yaml:"enabled"`
		MaxStale string `yaml:"max_stale"`
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"cache"`
	History struct {
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"history"`
	Protocols struct {
		Uniswap struct {
			APIKey    string `yaml:"api_key"`
			APIKeyEnv string `yaml:"api_key_env"`
		} `yaml:"uniswap"`
		Jupiter struct {
			APIKey    string `yaml:"api_key"`
			APIKeyEnv string `yaml:"api_key_env"`
		} `yaml:"jupiter"`
	} `yaml:"protocols"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}

	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 10 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.MaxStale < 0 {
		settings.MaxStale = 5 * time.Minute
	}
	if settings.FuzzyThreshold <= 0 || settings.FuzzyThreshold > 1 {
		settings.FuzzyThreshold = 0.6
	}

	return settings, nil
}

func defaultSettings() (Settings, error) {
	cachePath, lockPath, err := defaultCachePaths()
	if err != nil {
		return Settings{}, err
	}
	logDir, err := defaultLogDir()
	if err != nil {
		return Settings{}, err
	}
	cacheDir := filepath.Dir(cachePath)
	return Settings{
		OutputMode:      "json",
		FuzzyThreshold:  0.6,
		Timeout:         10 * time.Second,
		Retries:         2,
		MaxStale:        5 * time.Minute,
		CacheEnabled:    true,
		CachePath:       cachePath,
		CacheLockPath:   lockPath,
		HistoryPath:     filepath.Join(cacheDir, "history.db"),
		HistoryLockPath: filepath.Join(cacheDir, "history.lock"),
		LogDir:          logDir,
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "defishell", "config.yaml"), nil
}

func defaultCachePaths() (string, string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, "defishell")
	return filepath.Join(dir, "cache.db"), filepath.Join(dir, "cache.lock"), nil
}

func defaultLogDir() (string, error) {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(base, "defishell", "logs"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.Debug != nil {
		settings.Debug = *cfg.Debug
	}
	if cfg.FuzzyThreshold != nil {
		settings.FuzzyThreshold = *cfg.FuzzyThreshold
	}
	if len(cfg.ProtocolPreference) > 0 {
		settings.ProtocolPreference = normalizeList(cfg.ProtocolPreference)
	}
	if len(cfg.CommandDefaults) > 0 {
		defaults := make(map[string]string, len(cfg.CommandDefaults))
		for k, v := range cfg.CommandDefaults {
			defaults[strings.ToLower(strings.TrimSpace(k))] = strings.ToLower(strings.TrimSpace(v))
		}
		settings.CommandDefaults = defaults
	}
	if cfg.Cache.Enabled != nil {
		settings.CacheEnabled = *cfg.Cache.Enabled
	}
	if cfg.Cache.MaxStale != "" {
		d, err := time.ParseDuration(cfg.Cache.MaxStale)
		if err != nil {
			return fmt.Errorf("config cache.max_stale: %w", err)
		}
		settings.MaxStale = d
	}
	if cfg.Cache.Path != "" {
		settings.CachePath = cfg.Cache.Path
	}
	if cfg.Cache.LockPath != "" {
		settings.CacheLockPath = cfg.Cache.LockPath
	}
	if cfg.History.Path != "" {
		settings.HistoryPath = cfg.History.Path
	}
	if cfg.History.LockPath != "" {
		settings.HistoryLockPath = cfg.History.LockPath
	}
	if cfg.Protocols.Uniswap.APIKey != "" {
		settings.UniswapAPIKey = cfg.Protocols.Uniswap.APIKey
	}
	if cfg.Protocols.Uniswap.APIKeyEnv != "" {
		settings.UniswapAPIKey = os.Getenv(cfg.Protocols.Uniswap.APIKeyEnv)
	}
	if cfg.Protocols.Jupiter.APIKey != "" {
		settings.JupiterAPIKey = cfg.Protocols.Jupiter.APIKey
	}
	if cfg.Protocols.Jupiter.APIKeyEnv != "" {
		settings.JupiterAPIKey = os.Getenv(cfg.Protocols.Jupiter.APIKeyEnv)
	}

	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("DEFISH_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("DEFISH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("DEFISH_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Retries = n
		}
	}
	if v := os.Getenv("DEFISH_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.Debug = b
		}
	}
	if v := os.Getenv("DEFISH_FUZZY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			settings.FuzzyThreshold = f
		}
	}
	if v := os.Getenv("DEFISH_PROTOCOL_PREFERENCE"); v != "" {
		settings.ProtocolPreference = normalizeList(strings.Split(v, ","))
	}
	if v := os.Getenv("DEFISH_MAX_STALE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.MaxStale = d
		}
	}
	if v := os.Getenv("DEFISH_NO_STALE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.NoStale = b
		}
	}
	if v := os.Getenv("DEFISH_NO_CACHE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.CacheEnabled = !b
		}
	}
	if v := os.Getenv("DEFISH_CACHE_PATH"); v != "" {
		settings.CachePath = v
	}
	if v := os.Getenv("DEFISH_CACHE_LOCK_PATH"); v != "" {
		settings.CacheLockPath = v
	}
	if v := os.Getenv("DEFISH_HISTORY_PATH"); v != "" {
		settings.HistoryPath = v
	}
	if v := os.Getenv("DEFISH_HISTORY_LOCK_PATH"); v != "" {
		settings.HistoryLockPath = v
	}
	if v := os.Getenv("DEFISH_LOG_DIR"); v != "" {
		settings.LogDir = v
	}
	if v := os.Getenv("DEFISH_UNISWAP_API_KEY"); v != "" {
		settings.UniswapAPIKey = v
	}
	if v := os.Getenv("DEFISH_JUPITER_API_KEY"); v != "" {
		settings.JupiterAPIKey = v
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if strings.TrimSpace(flags.Select) != "" {
		settings.SelectFields = normalizeList(strings.Split(flags.Select, ","))
	}
	settings.ResultsOnly = flags.ResultsOnly

	if strings.TrimSpace(flags.EnableCommands) != "" {
		settings.EnableCommands = normalizeList(strings.Split(flags.EnableCommands, ","))
	}
	settings.ExplicitProtocol = strings.ToLower(strings.TrimSpace(flags.Protocol))
	if flags.FuzzyThreshold > 0 {
		settings.FuzzyThreshold = flags.FuzzyThreshold
	}

	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	if flags.MaxStale != "" {
		d, err := time.ParseDuration(flags.MaxStale)
		if err != nil {
			return fmt.Errorf("parse --max-stale: %w", err)
		}
		settings.MaxStale = d
	}
	if flags.NoStale {
		settings.NoStale = true
	}
	if flags.NoCache {
		settings.CacheEnabled = false
	}
	if flags.Debug {
		settings.Debug = true
	}

	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}

	return nil
}

func normalizeList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		v := strings.ToLower(strings.TrimSpace(item))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
