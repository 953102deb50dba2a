package logger

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/jobinfo/wabot/core/buildinfo"
	coreconfig "github.com/jobinfo/wabot/core/config"
)

var (
	initOnce sync.Once

	levelVar slog.LevelVar

	// L is the base logger shared by all components.
	L *slog.Logger

	// DB logs database-related events.
	DB *slog.Logger
	// MIG logs database migration events.
	MIG *slog.Logger
	// WA logs WhatsApp transport events.
	WA *slog.Logger
	// DISPATCH logs conversation dispatch activity.
	DISPATCH *slog.Logger
	// FLOW logs flow state-machine transitions.
	FLOW *slog.Logger
	// OTP logs one-time-code lifecycle events.
	OTP *slog.Logger
	// REAPER logs abandonment sweep activity.
	REAPER *slog.Logger
	// ADMIN logs admin API access.
	ADMIN *slog.Logger
)

func init() {
	// Safe defaults until InitLogger runs; tests rely on this.
	wireComponents(slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

// InitLogger configures the global structured logger. It may be called only once.
func InitLogger(cfg *coreconfig.Config) error {
	initOnce.Do(func() {
		levelVar.Set(selectLevel(cfg))

		opts := &slog.HandlerOptions{Level: &levelVar}
		var handler slog.Handler
		if selectFormat(cfg) == formatText {
			handler = slog.NewTextHandler(os.Stdout, opts)
		} else {
			handler = slog.NewJSONHandler(os.Stdout, opts)
		}

		logger := slog.New(handler)
		wireComponents(logger)
		slog.SetDefault(logger)
		logStartup(cfg)
	})
	return nil
}

func wireComponents(logger *slog.Logger) {
	L = logger
	DB = logger.With("component", "db")
	MIG = logger.With("component", "db.migrate")
	WA = logger.With("component", "wa")
	DISPATCH = logger.With("component", "dispatch")
	FLOW = logger.With("component", "flow")
	OTP = logger.With("component", "otp")
	REAPER = logger.With("component", "reaper")
	ADMIN = logger.With("component", "admin")
}

func logStartup(cfg *coreconfig.Config) {
	attrs := []slog.Attr{
		slog.String("component", "app"),
		slog.String("event", "startup"),
		slog.String("go_version", runtime.Version()),
		slog.String("build_commit", buildinfo.Commit),
		slog.String("build_time", buildinfo.Date),
	}
	if cfg != nil {
		attrs = append(attrs, slog.String("cfg_profile", selectProfile(cfg)))
	}
	L.LogAttrs(context.Background(), slog.LevelInfo, "startup", attrs...)
}

type logFormat int

const (
	formatJSON logFormat = iota
	formatText
)

func selectFormat(cfg *coreconfig.Config) logFormat {
	if cfg == nil {
		return formatJSON
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Format)) {
	case "kv", "text", "pretty":
		return formatText
	case "json":
		return formatJSON
	}
	// Prefer human-friendly format when profile indicates debug/dev mode.
	if strings.EqualFold(cfg.Logging.Profile, "debug") || strings.EqualFold(cfg.Logging.Profile, "dev") {
		return formatText
	}
	return formatJSON
}

func selectLevel(cfg *coreconfig.Config) slog.Level {
	if cfg == nil {
		return slog.LevelInfo
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func selectProfile(cfg *coreconfig.Config) string {
	if cfg == nil || strings.TrimSpace(cfg.Logging.Profile) == "" {
		return "prod"
	}
	return cfg.Logging.Profile
}
