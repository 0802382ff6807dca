package log

import (
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration.
type Config struct {
	Level       string `mapstructure:"level"`
	Pretty      bool   `mapstructure:"pretty"`
	ServiceName string `mapstructure:"service_name"`
}

var (
	global = zerolog.New(os.Stdout).With().Timestamp().Logger()
	once   sync.Once
)

// New builds a logger writing JSON lines to w, or console output when
// cfg.Pretty is set. Unknown levels fall back to info.
func New(cfg Config, w io.Writer) zerolog.Logger {
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	lc := zerolog.New(w).Level(parseLevel(cfg.Level)).With().Timestamp()
	if cfg.ServiceName != "" {
		lc = lc.Str(FieldService, cfg.ServiceName)
	}
	return lc.Logger()
}

// Init replaces the global logger with one built from cfg and routes the
// standard library logger through it. Only the first call has an effect.
// The level is applied process wide so SetLevel can change it later.
func Init(cfg Config) {
	once.Do(func() {
		zerolog.SetGlobalLevel(parseLevel(cfg.Level))
		cfg.Level = zerolog.TraceLevel.String()
		global = New(cfg, os.Stdout)

		stdlog.SetFlags(0)
		stdlog.SetOutput(global.With().Str("source", "stdlog").Logger())
	})
}

// SetLevel changes the minimum level of every logger at runtime.
func SetLevel(level string) {
	zerolog.SetGlobalLevel(parseLevel(level))
}

// L returns the global logger.
func L() zerolog.Logger {
	return global
}

func parseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "warning":
		return zerolog.WarnLevel
	case "off":
		return zerolog.Disabled
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
