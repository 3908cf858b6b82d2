// Package whitelist is the temporal entitlement ledger for whitelist grants and whitelist bans.
//
// Both record kinds are scoped by server_type. An active ban blocks new grants in its category and
// issuing a ban invalidates the standing grants of that category in the same transaction.
package whitelist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/furfur/central/internal/config"
	"github.com/furfur/central/internal/database"
	"github.com/furfur/central/internal/database/query"
	"github.com/furfur/central/internal/domain"
	"github.com/furfur/central/internal/metrics"
	"github.com/furfur/central/internal/player"
	"github.com/jackc/pgx/v5"
)

const DefaultServerType = "default"

var (
	ErrGrantNotFound = errors.New("whitelist grant not found")
	ErrBanNotFound   = errors.New("whitelist ban not found")
	ErrServerType    = errors.New("server_type must not be empty")
	ErrDuration      = errors.New("duration_days must be positive")
)

// Grant is a positive, time bounded entitlement for a single server_type.
type Grant struct {
	ID         int64  `json:"id"`
	PlayerID   int64  `json:"player_id"`
	AdminID    int64  `json:"admin_id"`
	ServerType string `json:"server_type"`
	domain.Validity
	PlayerCkey      *string      `json:"player_ckey"`
	PlayerDiscordID *string      `json:"player_discord_id"`
	State           domain.State `json:"state"`
}

// Ban blocks and revokes grants of the same server_type while active.
type Ban struct {
	ID         int64  `json:"id"`
	PlayerID   int64  `json:"player_id"`
	AdminID    int64  `json:"admin_id"`
	ServerType string `json:"server_type"`
	domain.Validity
	Reason          *string      `json:"reason"`
	PlayerCkey      *string      `json:"player_ckey"`
	PlayerDiscordID *string      `json:"player_discord_id"`
	State           domain.State `json:"state"`
}

type GrantRequest struct {
	Player     player.Ref `json:"player"`
	Admin      player.Ref `json:"admin"`
	ServerType string     `json:"server_type" binding:"omitempty,max=32"`
	// Zero uses the configured default.
	DurationDays int `json:"duration_days" binding:"omitempty,gt=0,lte=36500"`
}

type BanRequest struct {
	Player       player.Ref `json:"player"`
	Admin        player.Ref `json:"admin"`
	ServerType   string     `json:"server_type" binding:"omitempty,max=32"`
	DurationDays int        `json:"duration_days" binding:"omitempty,gt=0,lte=36500"`
	Reason       *string    `json:"reason" binding:"omitempty,max=1024"`
}

// GrantPatch overwrites only the fields that are set.
type GrantPatch struct {
	ServerType     *string    `json:"server_type" binding:"omitempty,max=32"`
	ExpirationTime *time.Time `json:"expiration_time"`
	Valid          *bool      `json:"valid"`
}

type BanPatch struct {
	GrantPatch
	Reason *string `json:"reason" binding:"omitempty,max=1024"`
}

// Query filters grants or bans. Player and admin may each be given by id, ckey or discord id.
type Query struct {
	query.Filter
	PlayerID        int64  `json:"player_id" schema:"player_id" url:"player_id,omitempty"`
	Ckey            string `json:"ckey" schema:"ckey" url:"ckey,omitempty"`
	DiscordID       string `json:"discord_id" schema:"discord_id" url:"discord_id,omitempty"`
	AdminID         int64  `json:"admin_id" schema:"admin_id" url:"admin_id,omitempty"`
	AdminCkey       string `json:"admin_ckey" schema:"admin_ckey" url:"admin_ckey,omitempty"`
	AdminDiscordID  string `json:"admin_discord_id" schema:"admin_discord_id" url:"admin_discord_id,omitempty"`
	ServerType      string `json:"server_type" schema:"server_type" url:"server_type,omitempty"`
	IncludeInactive bool   `json:"include_inactive" schema:"include_inactive" url:"include_inactive,omitempty"`
}

func normalizeServerType(serverType string) string {
	serverType = strings.TrimSpace(serverType)
	if serverType == "" {
		return DefaultServerType
	}

	return serverType
}

type Whitelists struct {
	repo    Repository
	db      database.Database
	players player.Players
	conf    config.Whitelist
	metrics *metrics.Metrics
}

func NewWhitelists(repo Repository, players player.Players, conf config.Whitelist, collector *metrics.Metrics) Whitelists {
	return Whitelists{repo: repo, db: repo.db, players: players, conf: conf, metrics: collector}
}

func (w Whitelists) resolvePair(ctx context.Context, playerRef player.Ref, adminRef player.Ref) (player.Player, player.Player, error) {
	target, errTarget := w.players.Resolve(ctx, playerRef)
	if errTarget != nil {
		return player.Player{}, player.Player{}, errTarget
	}

	admin, errAdmin := w.players.Resolve(ctx, adminRef)
	if errAdmin != nil {
		return player.Player{}, player.Player{}, errAdmin
	}

	return target, admin, nil
}

// Grant resolves the player and admin references and issues a grant. Unless ignoreBans is set an active
// whitelist ban in the same server_type rejects the grant with domain.ErrBanned.
func (w Whitelists) Grant(ctx context.Context, req GrantRequest, ignoreBans bool) (Grant, error) {
	target, admin, errResolve := w.resolvePair(ctx, req.Player, req.Admin)
	if errResolve != nil {
		return Grant{}, errResolve
	}

	days := req.DurationDays
	if days == 0 {
		days = w.conf.GrantDays
	}

	return w.IssueGrant(ctx, target.ID, admin.ID, req.ServerType, days, ignoreBans)
}

// IssueGrant creates a grant for already resolved players.
func (w Whitelists) IssueGrant(ctx context.Context, playerID int64, adminID int64, serverType string, days int, ignoreBans bool) (Grant, error) {
	if days <= 0 {
		return Grant{}, errors.Join(ErrDuration, domain.ErrValidation)
	}

	serverType = normalizeServerType(serverType)
	now := domain.Now()
	grant := Grant{
		PlayerID:   playerID,
		AdminID:    adminID,
		ServerType: serverType,
		Validity:   domain.NewValidity(now, domain.Days(days)),
	}

	errTx := w.db.WrapTx(ctx, func(tx pgx.Tx) error {
		if err := w.repo.LockCategory(ctx, tx, playerID, serverType); err != nil {
			return err
		}

		if !ignoreBans {
			banned, errBanned := w.repo.HasActiveBan(ctx, tx, playerID, serverType, now)
			if errBanned != nil {
				return errBanned
			}

			if banned {
				return errors.Join(fmt.Errorf("%w: player %d server_type %s", domain.ErrBanned, playerID, serverType),
					domain.ErrConflict)
			}
		}

		return w.repo.InsertGrant(ctx, tx, &grant)
	})
	if errTx != nil {
		if errors.Is(errTx, domain.ErrBanned) {
			w.metrics.GrantBlocked(serverType)
		}

		return Grant{}, errTx
	}

	w.metrics.GrantIssued(serverType)
	slog.Info("Issued whitelist grant", slog.Int64("grant_id", grant.ID), slog.Int64("player_id", playerID),
		slog.String("server_type", serverType), slog.Bool("ignore_bans", ignoreBans),
		slog.String("expires", humanize.Time(grant.ExpirationTime)))

	return w.GetGrant(ctx, grant.ID)
}

// Ban issues a whitelist ban. When invalidateGrants is set every active grant of the player in the
// same server_type is invalidated in the same transaction as the ban insert.
func (w Whitelists) Ban(ctx context.Context, req BanRequest, invalidateGrants bool) (Ban, error) {
	target, admin, errResolve := w.resolvePair(ctx, req.Player, req.Admin)
	if errResolve != nil {
		return Ban{}, errResolve
	}

	days := req.DurationDays
	if days == 0 {
		days = w.conf.BanDays
	}

	if days <= 0 {
		return Ban{}, errors.Join(ErrDuration, domain.ErrValidation)
	}

	serverType := normalizeServerType(req.ServerType)
	now := domain.Now()
	ban := Ban{
		PlayerID:   target.ID,
		AdminID:    admin.ID,
		ServerType: serverType,
		Validity:   domain.NewValidity(now, domain.Days(days)),
		Reason:     req.Reason,
	}

	var invalidated int64

	errTx := w.db.WrapTx(ctx, func(tx pgx.Tx) error {
		if err := w.repo.LockCategory(ctx, tx, target.ID, serverType); err != nil {
			return err
		}

		if invalidateGrants {
			count, errInvalidate := w.repo.InvalidateGrants(ctx, tx, target.ID, serverType, now)
			if errInvalidate != nil {
				return errInvalidate
			}

			invalidated = count
		}

		return w.repo.InsertBan(ctx, tx, &ban)
	})
	if errTx != nil {
		return Ban{}, errTx
	}

	w.metrics.WhitelistBanIssued(serverType, invalidated)
	slog.Info("Issued whitelist ban", slog.Int64("ban_id", ban.ID), slog.Int64("player_id", target.ID),
		slog.String("server_type", serverType), slog.Int64("invalidated", invalidated),
		slog.String("expires", humanize.Time(ban.ExpirationTime)))

	return w.GetBan(ctx, ban.ID)
}

func applyGrantPatch(patch GrantPatch, serverType *string, validity *domain.Validity) error {
	if patch.ServerType != nil {
		value := strings.TrimSpace(*patch.ServerType)
		if value == "" {
			return errors.Join(ErrServerType, domain.ErrValidation)
		}

		*serverType = value
	}

	if patch.ExpirationTime != nil {
		validity.ExpirationTime = patch.ExpirationTime.UTC().Truncate(time.Microsecond)
	}

	if patch.Valid != nil {
		validity.Valid = *patch.Valid
	}

	return nil
}

// PatchGrant overwrites the supplied fields of a grant, leaving every other field untouched.
func (w Whitelists) PatchGrant(ctx context.Context, grantID int64, patch GrantPatch) (Grant, error) {
	errTx := w.db.WrapTx(ctx, func(tx pgx.Tx) error {
		grant, errGet := w.repo.GetGrant(ctx, tx, grantID, true)
		if errGet != nil {
			return grantErr(grantID, errGet)
		}

		if err := applyGrantPatch(patch, &grant.ServerType, &grant.Validity); err != nil {
			return err
		}

		return w.repo.UpdateGrant(ctx, tx, grant)
	})
	if errTx != nil {
		return Grant{}, errTx
	}

	return w.GetGrant(ctx, grantID)
}

// PatchBan overwrites the supplied fields of a whitelist ban.
func (w Whitelists) PatchBan(ctx context.Context, banID int64, patch BanPatch) (Ban, error) {
	errTx := w.db.WrapTx(ctx, func(tx pgx.Tx) error {
		ban, errGet := w.repo.GetBan(ctx, tx, banID, true)
		if errGet != nil {
			return banErr(banID, errGet)
		}

		if err := applyGrantPatch(patch.GrantPatch, &ban.ServerType, &ban.Validity); err != nil {
			return err
		}

		if patch.Reason != nil {
			ban.Reason = patch.Reason
		}

		return w.repo.UpdateBan(ctx, tx, ban)
	})
	if errTx != nil {
		return Ban{}, errTx
	}

	return w.GetBan(ctx, banID)
}

func grantErr(grantID int64, err error) error {
	if errors.Is(err, database.ErrNoResult) {
		return errors.Join(fmt.Errorf("%w: %d", ErrGrantNotFound, grantID), domain.ErrNotFound)
	}

	return err
}

func banErr(banID int64, err error) error {
	if errors.Is(err, database.ErrNoResult) {
		return errors.Join(fmt.Errorf("%w: %d", ErrBanNotFound, banID), domain.ErrNotFound)
	}

	return err
}

func (w Whitelists) GetGrant(ctx context.Context, grantID int64) (Grant, error) {
	grant, errGet := w.repo.GetGrant(ctx, w.db.Pool(), grantID, false)
	if errGet != nil {
		return Grant{}, grantErr(grantID, errGet)
	}

	grant.State = grant.Validity.State(domain.Now())

	return grant, nil
}

func (w Whitelists) GetBan(ctx context.Context, banID int64) (Ban, error) {
	ban, errGet := w.repo.GetBan(ctx, w.db.Pool(), banID, false)
	if errGet != nil {
		return Ban{}, banErr(banID, errGet)
	}

	ban.State = ban.Validity.State(domain.Now())

	return ban, nil
}

func (w Whitelists) QueryGrants(ctx context.Context, filter Query) ([]Grant, int64, error) {
	now := domain.Now()

	grants, count, errQuery := w.repo.QueryGrants(ctx, filter, now)
	if errQuery != nil {
		return nil, 0, errQuery
	}

	for idx := range grants {
		grants[idx].State = grants[idx].Validity.State(now)
	}

	return grants, count, nil
}

func (w Whitelists) QueryBans(ctx context.Context, filter Query) ([]Ban, int64, error) {
	now := domain.Now()

	bans, count, errQuery := w.repo.QueryBans(ctx, filter, now)
	if errQuery != nil {
		return nil, 0, errQuery
	}

	for idx := range bans {
		bans[idx].State = bans[idx].Validity.State(now)
	}

	return bans, count, nil
}

// ActiveCkeys returns the distinct ckeys holding an active grant for serverType.
func (w Whitelists) ActiveCkeys(ctx context.Context, serverType string) ([]string, error) {
	return w.repo.ActiveIdentifiers(ctx, "ckey", normalizeServerType(serverType), domain.Now())
}

// ActiveDiscordIDs returns the distinct discord ids holding an active grant for serverType.
func (w Whitelists) ActiveDiscordIDs(ctx context.Context, serverType string) ([]string, error) {
	return w.repo.ActiveIdentifiers(ctx, "discord_id", normalizeServerType(serverType), domain.Now())
}

// IsBanned reports whether the player currently has an active whitelist ban for serverType.
func (w Whitelists) IsBanned(ctx context.Context, playerID int64, serverType string) (bool, error) {
	return w.repo.HasActiveBan(ctx, w.db.Pool(), playerID, normalizeServerType(serverType), domain.Now())
}
