package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// HistoryMode selects whether vital records are simulated or loaded.
type HistoryMode string

const (
	HistoryGenerate HistoryMode = "generate"
	HistoryImport   HistoryMode = "import"
)

// Settings are the process-level knobs, read from TAUSAGA_* variables.
type Settings struct {
	Seed        uint64        `env:"SEED"`
	ConfigPath  string        `env:"CONFIG" envDefault:"configs/islands.yaml"`
	DBPath      string        `env:"DB" envDefault:"data/tausaga.db"`
	ExportDir   string        `env:"EXPORT_DIR" envDefault:"histories"`
	StartYear   int           `env:"START_YEAR" envDefault:"-1000"`
	EndYear     int           `env:"END_YEAR" envDefault:"1866"`
	ThisYear    int           `env:"THIS_YEAR" envDefault:"2020"`
	HistoryMode HistoryMode   `env:"HISTORY_MODE" envDefault:"generate"`
	CheckPeriod time.Duration `env:"CHECK_PERIOD" envDefault:"0s"`
	APIAddr     string        `env:"API_ADDR"`
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadSettings parses Settings from the environment.
func LoadSettings() (Settings, error) {
	var s Settings
	if err := env.ParseWithOptions(&s, env.Options{Prefix: "TAUSAGA_"}); err != nil {
		return s, fmt.Errorf("parse env: %w", err)
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// Validate checks year ordering and enum values.
func (s Settings) Validate() error {
	if s.StartYear >= s.EndYear {
		return fmt.Errorf("%w: start year %d not before end year %d", ErrInvalidConfig, s.StartYear, s.EndYear)
	}
	if s.EndYear > s.ThisYear {
		return fmt.Errorf("%w: end year %d after this year %d", ErrInvalidConfig, s.EndYear, s.ThisYear)
	}
	switch s.HistoryMode {
	case HistoryGenerate, HistoryImport:
	default:
		return fmt.Errorf("%w: history mode %q", ErrInvalidConfig, s.HistoryMode)
	}
	if _, err := s.Level(); err != nil {
		return err
	}
	return nil
}

// Level maps LogLevel to a slog level.
func (s Settings) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s.LogLevel))); err != nil {
		return l, fmt.Errorf("%w: log level %q", ErrInvalidConfig, s.LogLevel)
	}
	return l, nil
}
