// Package player implements the identity store. A Player anchors every other record and is keyed by
// an optional discord id and an optional ckey, at least one of which is always set.
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/furfur/central/internal/database"
	"github.com/furfur/central/internal/database/query"
	"github.com/furfur/central/internal/domain"
	"github.com/furfur/central/internal/metrics"
	"github.com/jackc/pgx/v5"
)

var (
	ErrInvalidRef     = errors.New("exactly one of id, ckey or discord_id must be supplied")
	ErrNoIdentifier   = errors.New("at least one of ckey or discord_id must be supplied")
	ErrPlayerNotFound = errors.New("player not found")
)

type Player struct {
	ID        int64     `json:"id"`
	DiscordID *string   `json:"discord_id"`
	Ckey      *string   `json:"ckey"`
	CreatedOn time.Time `json:"created_on"`
	UpdatedOn time.Time `json:"updated_on"`
}

func (p Player) String() string {
	return fmt.Sprintf("Player(%d ckey=%s discord_id=%s)", p.ID, deref(p.Ckey), deref(p.DiscordID))
}

func (p Player) HasCkey() bool {
	return p.Ckey != nil && *p.Ckey != ""
}

func (p Player) HasDiscordID() bool {
	return p.DiscordID != nil && *p.DiscordID != ""
}

func deref(value *string) string {
	if value == nil {
		return "<nil>"
	}

	return *value
}

// RefKind identifies which identifier a Ref resolves through.
type RefKind int

const (
	RefInvalid RefKind = iota
	RefByID
	RefByCkey
	RefByDiscordID
)

// Ref is a reference to a player by exactly one of its identifiers.
type Ref struct {
	ID        int64  `json:"id,omitempty" binding:"omitempty,gt=0"`
	Ckey      string `json:"ckey,omitempty" binding:"omitempty,ckey"`
	DiscordID string `json:"discord_id,omitempty" binding:"omitempty,discordid"`
}

func ByID(playerID int64) Ref {
	return Ref{ID: playerID}
}

func ByCkey(ckey string) Ref {
	return Ref{Ckey: ckey}
}

func ByDiscordID(discordID string) Ref {
	return Ref{DiscordID: discordID}
}

// Kind returns the single resolution path of the reference.
func (r Ref) Kind() (RefKind, error) {
	var (
		kind  = RefInvalid
		count int
	)

	if r.ID > 0 {
		kind = RefByID
		count++
	}

	if r.Ckey != "" {
		kind = RefByCkey
		count++
	}

	if r.DiscordID != "" {
		kind = RefByDiscordID
		count++
	}

	if count != 1 {
		return RefInvalid, errors.Join(ErrInvalidRef, domain.ErrValidation)
	}

	return kind, nil
}

func (r Ref) String() string {
	kind, _ := r.Kind()
	switch kind {
	case RefByID:
		return fmt.Sprintf("id:%d", r.ID)
	case RefByCkey:
		return "ckey:" + r.Ckey
	case RefByDiscordID:
		return "discord_id:" + r.DiscordID
	default:
		return "invalid"
	}
}

// CreateRequest creates a player with one or both identifiers.
type CreateRequest struct {
	DiscordID string `json:"discord_id" binding:"omitempty,discordid"`
	Ckey      string `json:"ckey" binding:"omitempty,ckey"`
}

type PlayerQuery struct {
	query.Filter
	Ckey      string `json:"ckey" schema:"ckey" url:"ckey,omitempty"`
	DiscordID string `json:"discord_id" schema:"discord_id" url:"discord_id,omitempty"`
	// Partial only returns players missing one of the two identifiers.
	Partial bool `json:"partial" schema:"partial" url:"partial,omitempty"`
}

type Players struct {
	repo    Repository
	db      database.Database
	metrics *metrics.Metrics
}

func NewPlayers(repo Repository, collector *metrics.Metrics) Players {
	return Players{repo: repo, db: repo.db, metrics: collector}
}

// Create inserts a new player. Conflicting identifiers are reported as domain.ErrConflict.
func (p Players) Create(ctx context.Context, req CreateRequest) (Player, error) {
	if req.DiscordID == "" && req.Ckey == "" {
		return Player{}, errors.Join(ErrNoIdentifier, domain.ErrValidation)
	}

	newPlayer := Player{}
	if req.DiscordID != "" {
		newPlayer.DiscordID = &req.DiscordID
	}

	if req.Ckey != "" {
		newPlayer.Ckey = &req.Ckey
	}

	if err := p.repo.Insert(ctx, p.db, &newPlayer); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return Player{}, errors.Join(err, domain.ErrConflict)
		}

		return Player{}, err
	}

	slog.Info("Created player", slog.Int64("player_id", newPlayer.ID),
		slog.String("ckey", req.Ckey), slog.String("discord_id", req.DiscordID))

	return newPlayer, nil
}

// Resolve looks up a player by exactly one identifier. Missing players return domain.ErrNotFound.
func (p Players) Resolve(ctx context.Context, ref Ref) (Player, error) {
	return p.resolve(ctx, p.db, ref)
}

func (p Players) resolve(ctx context.Context, exec database.Executor, ref Ref) (Player, error) {
	if _, errKind := ref.Kind(); errKind != nil {
		return Player{}, errKind
	}

	player, err := p.repo.Get(ctx, exec, ref, false)
	if err != nil {
		if errors.Is(err, database.ErrNoResult) {
			return Player{}, errors.Join(fmt.Errorf("%w: %s", ErrPlayerNotFound, ref), domain.ErrNotFound)
		}

		return Player{}, err
	}

	return player, nil
}

// ResolveOrCreate behaves like Resolve, except that unknown discord ids create a new stub player.
func (p Players) ResolveOrCreate(ctx context.Context, ref Ref) (Player, error) {
	kind, errKind := ref.Kind()
	if errKind != nil {
		return Player{}, errKind
	}

	if kind == RefByDiscordID {
		return p.GetOrCreateByDiscordID(ctx, ref.DiscordID)
	}

	return p.Resolve(ctx, ref)
}

// GetOrCreateByDiscordID returns the player owning discordID, creating a stub without a ckey when none exists.
func (p Players) GetOrCreateByDiscordID(ctx context.Context, discordID string) (Player, error) {
	existing, errGet := p.repo.Get(ctx, p.db, ByDiscordID(discordID), false)
	if errGet == nil {
		return existing, nil
	}

	if !errors.Is(errGet, database.ErrNoResult) {
		return Player{}, errGet
	}

	stub := Player{DiscordID: &discordID}
	if err := p.repo.InsertOrGetDiscord(ctx, p.db, &stub); err != nil {
		return Player{}, err
	}

	return stub, nil
}

func (p Players) ByID(ctx context.Context, playerID int64) (Player, error) {
	return p.Resolve(ctx, ByID(playerID))
}

func (p Players) ByCkey(ctx context.Context, ckey string) (Player, error) {
	return p.Resolve(ctx, ByCkey(ckey))
}

func (p Players) ByDiscordID(ctx context.Context, discordID string) (Player, error) {
	return p.Resolve(ctx, ByDiscordID(discordID))
}

func (p Players) Query(ctx context.Context, filter PlayerQuery) ([]Player, int64, error) {
	return p.repo.Query(ctx, filter)
}

// Link binds ckey and discordID into a single player record.
//
// A new player is created when neither identifier is known. A partial player is completed when it
// is missing the other identifier. When either identifier is already bound to a different value
// the link is rejected with domain.ErrAlreadyLinked and nothing is changed. Linking a pair that is
// already bound together returns the existing player.
func (p Players) Link(ctx context.Context, ckey string, discordID string) (Player, error) {
	var linked Player

	errTx := p.db.WrapTx(ctx, func(tx pgx.Tx) error {
		byDiscord, errDiscord := p.repo.Get(ctx, tx, ByDiscordID(discordID), true)
		if errDiscord != nil && !errors.Is(errDiscord, database.ErrNoResult) {
			return errDiscord
		}

		byCkey, errCkey := p.repo.Get(ctx, tx, ByCkey(ckey), true)
		if errCkey != nil && !errors.Is(errCkey, database.ErrNoResult) {
			return errCkey
		}

		discordFound := errDiscord == nil
		ckeyFound := errCkey == nil

		switch {
		case discordFound && ckeyFound:
			if byDiscord.ID != byCkey.ID {
				return fmt.Errorf("%w: ckey %s and discord id %s belong to different players",
					domain.ErrAlreadyLinked, ckey, discordID)
			}

			linked = byDiscord

			return nil
		case discordFound:
			if byDiscord.HasCkey() {
				return fmt.Errorf("%w: discord id %s is linked to ckey %s",
					domain.ErrAlreadyLinked, discordID, *byDiscord.Ckey)
			}

			byDiscord.Ckey = &ckey
			linked = byDiscord

			return p.repo.Update(ctx, tx, &linked)
		case ckeyFound:
			if byCkey.HasDiscordID() {
				return fmt.Errorf("%w: ckey %s is linked to discord id %s",
					domain.ErrAlreadyLinked, ckey, *byCkey.DiscordID)
			}

			byCkey.DiscordID = &discordID
			linked = byCkey

			return p.repo.Update(ctx, tx, &linked)
		default:
			linked = Player{Ckey: &ckey, DiscordID: &discordID}

			return p.repo.Insert(ctx, tx, &linked)
		}
	})

	if errTx != nil {
		p.metrics.LinkResult("rejected")

		if errors.Is(errTx, database.ErrDuplicate) {
			// Lost a race against a concurrent link of the same identifiers.
			return Player{}, errors.Join(errTx, domain.ErrAlreadyLinked)
		}

		return Player{}, errTx
	}

	p.metrics.LinkResult("linked")
	slog.Info("Linked player", slog.Int64("player_id", linked.ID),
		slog.String("ckey", ckey), slog.String("discord_id", discordID))

	return linked, nil
}
