package log

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/furfur/central/pkg/stringutil"
	embed "github.com/leighmacdonald/discordgo-embed"
)

const (
	ColourDebug   = 9807270
	ColourInfo    = 3581519
	ColourWarn    = 14327864
	ColourError   = 13631488
	maxEmbedChars = 2000
	maxFields     = 25
)

var ErrWebhookURL = errors.New("invalid discord webhook url")

// WebhookExecutor is the subset of *discordgo.Session used to post log records.
type WebhookExecutor interface {
	WebhookExecute(webhookID string, token string, wait bool, data *discordgo.WebhookParams,
		options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordHandler is a slog.Handler posting records to a discord webhook as embeds. Messages longer
// than a single embed description are split across several embeds.
type DiscordHandler struct {
	exec      WebhookExecutor
	webhookID string
	token     string
	level     slog.Leveler
	attrs     []slog.Attr
	groups    []string
}

func NewDiscordHandler(exec WebhookExecutor, webhookURL string, level slog.Leveler) (*DiscordHandler, error) {
	webhookID, token, errParse := ParseWebhookURL(webhookURL)
	if errParse != nil {
		return nil, errParse
	}

	return &DiscordHandler{exec: exec, webhookID: webhookID, token: token, level: level}, nil
}

// ParseWebhookURL extracts the id and token from https://discord.com/api/webhooks/{id}/{token}.
func ParseWebhookURL(webhookURL string) (string, string, error) {
	parsed, errURL := url.Parse(webhookURL)
	if errURL != nil {
		return "", "", errors.Join(errURL, ErrWebhookURL)
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	idx := slices.Index(parts, "webhooks")

	if idx < 0 || len(parts) < idx+3 || parts[idx+1] == "" || parts[idx+2] == "" {
		return "", "", ErrWebhookURL
	}

	return parts[idx+1], parts[idx+2], nil
}

func (h *DiscordHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *DiscordHandler) Handle(_ context.Context, record slog.Record) error {
	fields := make([]slog.Attr, 0, len(h.attrs)+record.NumAttrs())
	fields = append(fields, h.attrs...)

	record.Attrs(func(attr slog.Attr) bool {
		fields = append(fields, h.qualify(attr))

		return true
	})

	var errs error

	for idx, chunk := range stringutil.StringChunkDelimited(record.Message, maxEmbedChars) {
		msg := embed.NewEmbed().
			SetTitle(record.Level.String()).
			SetDescription(chunk).
			SetColor(levelColour(record.Level)).
			SetFooter(record.Time.UTC().Format(time.RFC3339))

		if idx == 0 {
			for _, field := range fields[:min(len(fields), maxFields)] {
				msg.AddField(field.Key, field.Value.String()).MakeFieldInline()
			}
		}

		if _, err := h.exec.WebhookExecute(h.webhookID, h.token, false, &discordgo.WebhookParams{
			Embeds: []*discordgo.MessageEmbed{msg.Truncate().MessageEmbed},
		}); err != nil {
			errs = errors.Join(errs, fmt.Errorf("webhook execute: %w", err))
		}
	}

	return errs
}

func (h *DiscordHandler) WithAttrs(attrs []slog.Attr) slog.Handler { //nolint:ireturn
	clone := *h
	clone.attrs = slices.Clone(h.attrs)

	for _, attr := range attrs {
		clone.attrs = append(clone.attrs, h.qualify(attr))
	}

	return &clone
}

func (h *DiscordHandler) WithGroup(name string) slog.Handler { //nolint:ireturn
	if name == "" {
		return h
	}

	clone := *h
	clone.groups = append(slices.Clone(h.groups), name)

	return &clone
}

func (h *DiscordHandler) qualify(attr slog.Attr) slog.Attr {
	if len(h.groups) == 0 {
		return attr
	}

	return slog.Attr{Key: strings.Join(h.groups, ".") + "." + attr.Key, Value: attr.Value}
}

func levelColour(level slog.Level) int {
	switch {
	case level >= slog.LevelError:
		return ColourError
	case level >= slog.LevelWarn:
		return ColourWarn
	case level >= slog.LevelInfo:
		return ColourInfo
	default:
		return ColourDebug
	}
}
