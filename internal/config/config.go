// Package config loads the relay's environment-variable configuration
// surface (spec.md §6), following the teacher repository's defaults-then-
// overlay pattern but sourced from the process environment instead of a
// TOML file.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"

	"github.com/PowerMeep/GBA-PK-MMO/internal/protocol"
)

// Config holds every environment-variable setting named in spec.md §6,
// plus the three additive ambient-stack variables from SPEC_FULL.md §6.
type Config struct {
	LoggingLevel      string `envconfig:"LOGGING_LEVEL" default:"WARNING"`
	LogFormat         string `envconfig:"LOG_FORMAT" default:"console"`
	ServerName        string `envconfig:"SERVER_NAME" default:"servname"`
	PingTime          int    `envconfig:"PING_TIME" default:"5"`
	MaxMissedPongs    int    `envconfig:"MAX_MISSED_PONGS" default:"2"`
	SupportedGames    string `envconfig:"SUPPORTED_GAMES" default:"BPR1, BPR2, BPG1, BPG2"`
	MaxPlayers        int    `envconfig:"MAX_PLAYERS" default:"9"`
	Port              int    `envconfig:"PORT" default:"4096"`
	AdjacencySeedFile string `envconfig:"ADJACENCY_SEED_FILE" default:""`
	MetricsAddr       string `envconfig:"METRICS_ADDR" default:"127.0.0.1:9096"`
}

// Load optionally overlays a local .env file (ignored if absent — this is
// a developer convenience, not part of the configuration surface) and
// then parses the environment into a Config. Any malformed numeric
// variable is a fatal configuration error per spec.md §7.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !isNotExist(err) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT %d out of range", c.Port)
	}
	if c.PingTime <= 0 {
		return fmt.Errorf("PING_TIME must be positive, got %d", c.PingTime)
	}
	if c.MaxMissedPongs < 0 {
		return fmt.Errorf("MAX_MISSED_PONGS must not be negative, got %d", c.MaxMissedPongs)
	}
	if c.MaxPlayers < 0 {
		return fmt.Errorf("MAX_PLAYERS must not be negative, got %d", c.MaxPlayers)
	}
	return nil
}

// ServerNick derives the padded ServerNick from SERVER_NAME.
func (c *Config) ServerNick() (string, error) {
	return protocol.PadNick(c.ServerName)
}

// Games returns the set of accepted game tags, trimmed of surrounding
// whitespace from the CSV env value.
func (c *Config) Games() map[string]struct{} {
	set := make(map[string]struct{})
	for _, tag := range strings.Split(c.SupportedGames, ",") {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			set[tag] = struct{}{}
		}
	}
	return set
}

// LogLevel maps the LOGGING_LEVEL env value (Python logging.getLevelName
// style names) onto a zapcore.Level, defaulting to Warn for anything
// unrecognized.
func (c *Config) LogLevel() zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(c.LoggingLevel)) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "INFO":
		return zapcore.InfoLevel
	case "WARNING", "WARN":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	case "CRITICAL", "FATAL":
		return zapcore.FatalLevel
	default:
		return zapcore.WarnLevel
	}
}

func isNotExist(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory") ||
		strings.Contains(err.Error(), "cannot find the file")
}
