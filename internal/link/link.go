// Package link implements the ckey to discord account linking flow. A game server requests a short
// lived token for a ckey, the player follows the login url carrying that token as OAuth2 state, and
// the callback binds the verified discord account to the ckey.
package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/furfur/central/internal/config"
	"github.com/furfur/central/internal/database"
	"github.com/furfur/central/internal/domain"
	"github.com/furfur/central/internal/log"
	"github.com/furfur/central/internal/notification"
	"github.com/furfur/central/internal/player"
	"github.com/furfur/central/pkg/stringutil"
)

const tokenLength = 43

var (
	ErrTokenNotFound = errors.New("link token not found or expired")
	ErrCkey          = errors.New("ckey must not be empty")
	ErrCode          = errors.New("authorization code must not be empty")
)

// Token is a one time link token bound to a single ckey.
type Token struct {
	ID             int64     `json:"-"`
	Ckey           string    `json:"ckey"`
	Token          string    `json:"token"`
	ExpirationTime time.Time `json:"expiration_time"`
}

// IdentityProvider is the external account provider. *discord.Client satisfies it.
type IdentityProvider interface {
	AuthURL(state string) string
	Identify(ctx context.Context, code string) (*discordgo.User, error)
}

type Links struct {
	repo      Repository
	players   player.Players
	provider  IdentityProvider
	publisher notification.Publisher
	conf      config.Link
	channel   string
}

func NewLinks(repo Repository, players player.Players, provider IdentityProvider, publisher notification.Publisher,
	conf config.Link, channel string,
) Links {
	return Links{
		repo:      repo,
		players:   players,
		provider:  provider,
		publisher: publisher,
		conf:      conf,
		channel:   channel,
	}
}

// IssueToken returns the still valid token of ckey, or replaces an expired one with a fresh token.
// Concurrent calls for the same ckey always observe a single valid token.
func (l Links) IssueToken(ctx context.Context, ckey string) (Token, error) {
	if ckey == "" {
		return Token{}, errors.Join(ErrCkey, domain.ErrValidation)
	}

	now := domain.Now()

	return l.repo.Upsert(ctx, Token{
		Ckey:           ckey,
		Token:          stringutil.SecureRandomString(tokenLength),
		ExpirationTime: now.Add(l.conf.TokenTTL),
	}, now)
}

func (l Links) activeToken(ctx context.Context, token string) (Token, error) {
	if token == "" {
		return Token{}, errors.Join(ErrTokenNotFound, domain.ErrNotFound)
	}

	linkToken, errToken := l.repo.GetActive(ctx, token, domain.Now())
	if errToken != nil {
		if errors.Is(errToken, database.ErrNoResult) {
			return Token{}, errors.Join(ErrTokenNotFound, domain.ErrNotFound)
		}

		return Token{}, errToken
	}

	return linkToken, nil
}

// LoginURL returns the provider consent url for a valid token.
func (l Links) LoginURL(ctx context.Context, token string) (string, error) {
	if _, errToken := l.activeToken(ctx, token); errToken != nil {
		return "", errToken
	}

	return l.provider.AuthURL(token), nil
}

// Callback redeems the provider authorization code and links the resulting account to the ckey the
// state token was issued for. The token is consumed on success. The linked player is published on
// the notification channel, a publish failure is only logged.
func (l Links) Callback(ctx context.Context, code string, state string) (player.Player, error) {
	if code == "" {
		return player.Player{}, errors.Join(ErrCode, domain.ErrValidation)
	}

	linkToken, errToken := l.activeToken(ctx, state)
	if errToken != nil {
		return player.Player{}, errToken
	}

	user, errUser := l.provider.Identify(ctx, code)
	if errUser != nil {
		return player.Player{}, errUser
	}

	linked, errLink := l.players.Link(ctx, linkToken.Ckey, user.ID)
	if errLink != nil {
		slog.Warn("Rejected player link", slog.String("ckey", linkToken.Ckey), slog.String("discord_id", user.ID),
			log.ErrAttr(errLink))

		return player.Player{}, errLink
	}

	if errDelete := l.repo.Delete(ctx, linkToken.ID); errDelete != nil {
		return player.Player{}, fmt.Errorf("failed to consume link token: %w", errDelete)
	}

	slog.Info("Linked player", slog.Int64("player_id", linked.ID), slog.String("ckey", linkToken.Ckey),
		slog.String("discord_id", user.ID), slog.String("username", user.Username))

	if errPublish := l.publisher.Publish(ctx, l.channel, linked); errPublish != nil {
		slog.Error("Failed to publish player link", slog.Int64("player_id", linked.ID),
			log.ErrAttr(errPublish))
	}

	return linked, nil
}
