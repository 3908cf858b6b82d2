// Package ban manages account level player bans. Every mutation of a ban appends a row to its
// history in the same transaction, and history rows are never changed afterwards.
package ban

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/furfur/central/internal/database"
	"github.com/furfur/central/internal/database/query"
	"github.com/furfur/central/internal/domain"
	"github.com/furfur/central/internal/metrics"
	"github.com/furfur/central/internal/player"
	"github.com/jackc/pgx/v5"
)

var (
	ErrBanNotFound       = errors.New("ban not found")
	ErrInvalidDuration   = errors.New("duration_days must be positive")
	ErrInvalidTarget     = errors.New("invalid ban target")
	ErrAlreadyInvalid    = errors.New("ban is already invalidated")
	ErrReasonRequired    = errors.New("reason is required")
	ErrEmptyUpdate       = errors.New("no fields supplied")
	ErrExpirationInvalid = errors.New("expiration_time must be after issue_time")
)

const (
	maxReasonLength = 1024
	maxTargetLength = 64
)

type TargetType string

const (
	// TargetGame restricts the ban to a single game, e.g. a server codebase.
	TargetGame TargetType = "GAME"
	// TargetJob restricts the ban to a single in-game job or role.
	TargetJob TargetType = "JOB"
)

type Target struct {
	Type   TargetType `json:"type"`
	Target string     `json:"target"`
}

func validateTargets(targets []Target) error {
	for _, target := range targets {
		if target.Type != TargetGame && target.Type != TargetJob {
			return errors.Join(fmt.Errorf("%w: unknown type %q", ErrInvalidTarget, target.Type), domain.ErrValidation)
		}

		if target.Target == "" || len(target.Target) > maxTargetLength {
			return errors.Join(fmt.Errorf("%w: target must be 1-%d characters", ErrInvalidTarget, maxTargetLength),
				domain.ErrValidation)
		}
	}

	return nil
}

type Action string

const (
	ActionCreate     Action = "CREATE"
	ActionUpdate     Action = "UPDATE"
	ActionInvalidate Action = "INVALIDATE"
)

type Ban struct {
	ID       int64 `json:"id"`
	PlayerID int64 `json:"player_id"`
	AdminID  int64 `json:"admin_id"`
	domain.Validity
	Reason          *string      `json:"reason"`
	Targets         []Target     `json:"targets"`
	PlayerCkey      *string      `json:"player_ckey"`
	PlayerDiscordID *string      `json:"player_discord_id"`
	State           domain.State `json:"state"`
}

// History is a single immutable audit entry of a ban.
type History struct {
	ID        int64     `json:"id"`
	BanID     int64     `json:"ban_id"`
	AdminID   int64     `json:"admin_id"`
	Action    Action    `json:"action"`
	Details   *string   `json:"details"`
	CreatedOn time.Time `json:"created_on"`
}

type CreateRequest struct {
	Player       player.Ref `json:"player"`
	Admin        player.Ref `json:"admin"`
	DurationDays int        `json:"duration_days" binding:"required,gt=0,lte=36500"`
	Reason       *string    `json:"reason" binding:"omitempty,max=1024"`
	Targets      []Target   `json:"targets" binding:"omitempty,max=16"`
}

// UpdateRequest patches a ban. Only non nil fields are written. Supplying targets replaces the
// complete target list.
type UpdateRequest struct {
	Admin          player.Ref `json:"admin"`
	Reason         *string    `json:"reason,omitempty" binding:"omitempty,max=1024"`
	ExpirationTime *time.Time `json:"expiration_time,omitempty"`
	Targets        *[]Target  `json:"targets,omitempty"`
}

func (r UpdateRequest) empty() bool {
	return r.Reason == nil && r.ExpirationTime == nil && r.Targets == nil
}

// details renders the supplied fields as the JSON recorded in the history entry.
func (r UpdateRequest) details() (string, error) {
	patch := map[string]any{}

	if r.Reason != nil {
		patch["reason"] = *r.Reason
	}

	if r.ExpirationTime != nil {
		patch["expiration_time"] = r.ExpirationTime.UTC()
	}

	if r.Targets != nil {
		patch["targets"] = *r.Targets
	}

	body, errJSON := json.Marshal(patch)
	if errJSON != nil {
		return "", errors.Join(errJSON, domain.ErrInternal)
	}

	return string(body), nil
}

type UnbanRequest struct {
	Admin  player.Ref `json:"admin"`
	Reason string     `json:"reason" binding:"required,max=1024"`
}

type Query struct {
	query.Filter
	PlayerID        int64  `json:"player_id" schema:"player_id" url:"player_id,omitempty"`
	Ckey            string `json:"ckey" schema:"ckey" url:"ckey,omitempty"`
	DiscordID       string `json:"discord_id" schema:"discord_id" url:"discord_id,omitempty"`
	AdminID         int64  `json:"admin_id" schema:"admin_id" url:"admin_id,omitempty"`
	AdminCkey       string `json:"admin_ckey" schema:"admin_ckey" url:"admin_ckey,omitempty"`
	AdminDiscordID  string `json:"admin_discord_id" schema:"admin_discord_id" url:"admin_discord_id,omitempty"`
	IncludeInactive bool   `json:"include_inactive" schema:"include_inactive" url:"include_inactive,omitempty"`
}

type Bans struct {
	repo    Repository
	db      database.Database
	players player.Players
	metrics *metrics.Metrics
}

func NewBans(repo Repository, players player.Players, collector *metrics.Metrics) Bans {
	return Bans{repo: repo, db: repo.db, players: players, metrics: collector}
}

// Create stores a new ban together with its CREATE history entry.
func (b Bans) Create(ctx context.Context, req CreateRequest) (Ban, error) {
	if req.DurationDays <= 0 {
		return Ban{}, errors.Join(ErrInvalidDuration, domain.ErrValidation)
	}

	if err := validateTargets(req.Targets); err != nil {
		return Ban{}, err
	}

	target, errTarget := b.players.Resolve(ctx, req.Player)
	if errTarget != nil {
		return Ban{}, errTarget
	}

	admin, errAdmin := b.players.Resolve(ctx, req.Admin)
	if errAdmin != nil {
		return Ban{}, errAdmin
	}

	now := domain.Now()
	ban := Ban{
		PlayerID: target.ID,
		AdminID:  admin.ID,
		Validity: domain.NewValidity(now, domain.Days(req.DurationDays)),
		Reason:   req.Reason,
		Targets:  req.Targets,
	}

	errTx := b.db.WrapTx(ctx, func(tx pgx.Tx) error {
		if err := b.repo.Insert(ctx, tx, &ban); err != nil {
			return err
		}

		if err := b.repo.InsertTargets(ctx, tx, ban.ID, ban.Targets); err != nil {
			return err
		}

		return b.repo.AppendHistory(ctx, tx, &History{
			BanID:     ban.ID,
			AdminID:   admin.ID,
			Action:    ActionCreate,
			Details:   req.Reason,
			CreatedOn: now,
		})
	})
	if errTx != nil {
		return Ban{}, errTx
	}

	b.metrics.PlayerBanEvent(string(ActionCreate))
	slog.Info("Created player ban", slog.Int64("ban_id", ban.ID), slog.Int64("player_id", target.ID),
		slog.Int64("admin_id", admin.ID), slog.String("expires", humanize.Time(ban.ExpirationTime)))

	return b.Get(ctx, ban.ID)
}

// Update applies the supplied fields and appends an UPDATE history entry holding the patch. Any
// failure, including constraint violations from the new targets, rolls back both.
func (b Bans) Update(ctx context.Context, banID int64, req UpdateRequest) (Ban, error) {
	if req.empty() {
		return Ban{}, errors.Join(ErrEmptyUpdate, domain.ErrValidation)
	}

	if req.Targets != nil {
		if err := validateTargets(*req.Targets); err != nil {
			return Ban{}, err
		}
	}

	details, errDetails := req.details()
	if errDetails != nil {
		return Ban{}, errDetails
	}

	admin, errAdmin := b.players.Resolve(ctx, req.Admin)
	if errAdmin != nil {
		return Ban{}, errAdmin
	}

	errTx := b.db.WrapTx(ctx, func(tx pgx.Tx) error {
		ban, errGet := b.repo.Get(ctx, tx, banID, true)
		if errGet != nil {
			return notFound(banID, errGet)
		}

		if req.Reason != nil {
			ban.Reason = req.Reason
		}

		if req.ExpirationTime != nil {
			expiration := req.ExpirationTime.UTC().Truncate(time.Microsecond)
			if !expiration.After(ban.IssueTime) {
				return errors.Join(ErrExpirationInvalid, domain.ErrValidation)
			}

			ban.ExpirationTime = expiration
		}

		if err := b.repo.Update(ctx, tx, ban); err != nil {
			return err
		}

		if req.Targets != nil {
			if err := b.repo.DeleteTargets(ctx, tx, banID); err != nil {
				return err
			}

			if err := b.repo.InsertTargets(ctx, tx, banID, *req.Targets); err != nil {
				return err
			}
		}

		return b.repo.AppendHistory(ctx, tx, &History{
			BanID:     banID,
			AdminID:   admin.ID,
			Action:    ActionUpdate,
			Details:   &details,
			CreatedOn: domain.Now(),
		})
	})
	if errTx != nil {
		return Ban{}, errTx
	}

	b.metrics.PlayerBanEvent(string(ActionUpdate))
	slog.Info("Updated player ban", slog.Int64("ban_id", banID), slog.Int64("admin_id", admin.ID),
		slog.String("patch", details))

	return b.Get(ctx, banID)
}

// Unban invalidates a ban and records the reason. Invalidation is terminal, a second unban of the
// same ban is rejected with domain.ErrConflict.
func (b Bans) Unban(ctx context.Context, banID int64, req UnbanRequest) (Ban, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" || len(reason) > maxReasonLength {
		return Ban{}, errors.Join(ErrReasonRequired, domain.ErrValidation)
	}

	admin, errAdmin := b.players.Resolve(ctx, req.Admin)
	if errAdmin != nil {
		return Ban{}, errAdmin
	}

	errTx := b.db.WrapTx(ctx, func(tx pgx.Tx) error {
		ban, errGet := b.repo.Get(ctx, tx, banID, true)
		if errGet != nil {
			return notFound(banID, errGet)
		}

		if !ban.Valid {
			return errors.Join(fmt.Errorf("%w: %d", ErrAlreadyInvalid, banID), domain.ErrConflict)
		}

		ban.Valid = false

		if err := b.repo.Update(ctx, tx, ban); err != nil {
			return err
		}

		return b.repo.AppendHistory(ctx, tx, &History{
			BanID:     banID,
			AdminID:   admin.ID,
			Action:    ActionInvalidate,
			Details:   &reason,
			CreatedOn: domain.Now(),
		})
	})
	if errTx != nil {
		return Ban{}, errTx
	}

	b.metrics.PlayerBanEvent(string(ActionInvalidate))
	slog.Info("Invalidated player ban", slog.Int64("ban_id", banID), slog.Int64("admin_id", admin.ID),
		slog.String("reason", reason))

	return b.Get(ctx, banID)
}

func notFound(banID int64, err error) error {
	if errors.Is(err, database.ErrNoResult) {
		return errors.Join(fmt.Errorf("%w: %d", ErrBanNotFound, banID), domain.ErrNotFound)
	}

	return err
}

func (b Bans) Get(ctx context.Context, banID int64) (Ban, error) {
	ban, errGet := b.repo.Get(ctx, b.db.Pool(), banID, false)
	if errGet != nil {
		return Ban{}, notFound(banID, errGet)
	}

	targets, errTargets := b.repo.Targets(ctx, []int64{banID})
	if errTargets != nil {
		return Ban{}, errTargets
	}

	ban.Targets = targets[banID]
	if ban.Targets == nil {
		ban.Targets = []Target{}
	}

	ban.State = ban.Validity.State(domain.Now())

	return ban, nil
}

// History returns the audit trail of a ban, oldest first.
func (b Bans) History(ctx context.Context, banID int64) ([]History, error) {
	if _, errGet := b.repo.Get(ctx, b.db.Pool(), banID, false); errGet != nil {
		return nil, notFound(banID, errGet)
	}

	return b.repo.History(ctx, banID)
}

func (b Bans) Query(ctx context.Context, filter Query) ([]Ban, int64, error) {
	now := domain.Now()

	bans, count, errQuery := b.repo.Query(ctx, filter, now)
	if errQuery != nil {
		return nil, 0, errQuery
	}

	banIDs := make([]int64, len(bans))
	for idx, ban := range bans {
		banIDs[idx] = ban.ID
	}

	targets, errTargets := b.repo.Targets(ctx, banIDs)
	if errTargets != nil {
		return nil, 0, errTargets
	}

	for idx := range bans {
		bans[idx].Targets = targets[bans[idx].ID]
		if bans[idx].Targets == nil {
			bans[idx].Targets = []Target{}
		}

		bans[idx].State = bans[idx].Validity.State(now)
	}

	return bans, count, nil
}
