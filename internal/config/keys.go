package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "NARASTORE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.token", typ: kString, env: "NARASTORE_SERVER_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "analysis.base_url", typ: kString, env: "NARASTORE_ANALYSIS_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Analysis.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Analysis.BaseURL },
	},
	{
		key: "analysis.timeout", typ: kDuration, env: "NARASTORE_ANALYSIS_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Analysis.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Analysis.Timeout },
	},
	{
		key: "analysis.health_interval", typ: kDuration, env: "NARASTORE_ANALYSIS_HEALTH_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Analysis.HealthInterval = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Analysis.HealthInterval },
	},
	{
		key: "analysis.api_key", typ: kString, env: "NARASTORE_GEMINI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Analysis.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Analysis.APIKey },
	},
	{
		key: "analysis.mock_mode", typ: kBool, env: "NARASTORE_ANALYSIS_MOCK_MODE",
		apply:   func(cfg *Config, v any) { cfg.Analysis.MockMode = v.(bool) },
		extract: func(cfg Config) any { return cfg.Analysis.MockMode },
	},
	{
		key: "storage.data_dir", typ: kString, env: "NARASTORE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "report.font_path", typ: kString, env: "NARASTORE_REPORT_FONT_PATH",
		apply:   func(cfg *Config, v any) { cfg.Report.FontPath = v.(string) },
		extract: func(cfg Config) any { return cfg.Report.FontPath },
	},
	{
		key: "log.level", typ: kString, env: "NARASTORE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

// parse converts a raw string for s. Strings always parse.
func (s keySpec) parse(raw string) (any, error) {
	switch s.typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kDuration:
		return time.ParseDuration(raw)
	}
	return raw, nil
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		default:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if !ok || v == "" {
				continue
			}
			pv, err := s.parse(v)
			if err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, v, err)
				continue
			}
			s.apply(cfg, pv)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config, lookup lookupFunc) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw, ok := lookup(s.env)
		if !ok || raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
