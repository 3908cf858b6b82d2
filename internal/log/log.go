package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/bwmarrin/discordgo"
	"github.com/dotse/slug"
	sentryslog "github.com/getsentry/sentry-go/slog"
	slogmulti "github.com/samber/slog-multi"
)

type Config struct {
	Level Level `json:"level" mapstructure:"level"`
	// If set to a non-empty path, logs will also be written to the log file.
	File string `json:"file" mapstructure:"file"`
	// Enable using the sloggin library for logging HTTP requests
	HTTPEnabled bool `json:"http_enabled" mapstructure:"http_enabled"`
	// Enable support for OpenTelemetry by adding span/trace IDs
	HTTPOtelEnabled bool `json:"http_otel_enabled" mapstructure:"http_otel_enabled"`
	// Log level to use for http requests
	HTTPLevel Level `json:"http_level" mapstructure:"http_level"`
	// Full discord webhook url. When set, records at or above DiscordWebhookLevel are also posted there.
	DiscordWebhook      string `json:"discord_webhook" mapstructure:"discord_webhook"`
	DiscordWebhookLevel Level  `json:"discord_webhook_level" mapstructure:"discord_webhook_level"`
}

type Level string

const (
	Debug Level = "debug"
	Info  Level = "info"
	Warn  Level = "warn"
	Error Level = "error"
)

// ToSlogLevel maps our levels to the equivalent slog level.
func ToSlogLevel(level Level) slog.Level {
	switch level {
	case Debug:
		return slog.LevelDebug
	case Info:
		return slog.LevelInfo
	case Warn:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// MustCreateLogger creates and configures the default global log handler. Depending on configuration
// a local log file, an external sentry handler and a discord webhook handler may also be created.
//
// Returns a cleanup function which should be called on program shutdown.
//
// Panics on failure to open log file for writing.
func MustCreateLogger(ctx context.Context, conf Config, useSentry bool, version string) func() {
	var (
		closer = func() {}
		opts   = slug.HandlerOptions{
			HandlerOptions: slog.HandlerOptions{
				Level: ToSlogLevel(conf.Level),
			},
		}
		handlers []slog.Handler
	)

	if useSentry {
		handlers = append(handlers, sentryslog.Option{
			AddSource: true,
		}.NewSentryHandler(ctx))
	}

	if conf.File != "" {
		logFile, errLogFile := os.Create(conf.File)
		if errLogFile != nil {
			panic(fmt.Sprintf("Failed to open logfile: %v", errLogFile))
		}

		closer = func() {
			if errClose := logFile.Close(); errClose != nil {
				panic(fmt.Sprintf("Failed to close log file: %v", errClose))
			}
		}

		handlers = append(handlers, slug.NewHandler(opts, logFile))
	} else {
		handlers = append(handlers, slug.NewHandler(opts, os.Stdout))
	}

	if conf.DiscordWebhook != "" {
		// Webhook execution does not require a bot token.
		session, errSession := discordgo.New("")
		if errSession != nil {
			panic(fmt.Sprintf("Failed to create discord session: %v", errSession))
		}

		webhook, errWebhook := NewDiscordHandler(session, conf.DiscordWebhook, ToSlogLevel(conf.DiscordWebhookLevel))
		if errWebhook != nil {
			panic(fmt.Sprintf("Invalid discord webhook: %v", errWebhook))
		}

		handlers = append(handlers, webhook)
	}

	defaultLogger := slog.New(slogmulti.Fanout(handlers...))

	if version != "" {
		defaultLogger = defaultLogger.With("release", version)
	}

	slog.SetDefault(defaultLogger)

	return closer
}

func ErrAttr(err error) slog.Attr {
	return slog.Any("error", err)
}

func Closer(closer io.Closer) {
	if errClose := closer.Close(); errClose != nil {
		slog.Error("Failed to close", ErrAttr(errClose))
	}
}
