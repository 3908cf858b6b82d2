// Package donation records tier based donations and bridges qualifying donations into whitelist
// grants.
package donation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/furfur/central/internal/config"
	"github.com/furfur/central/internal/database"
	"github.com/furfur/central/internal/database/query"
	"github.com/furfur/central/internal/domain"
	"github.com/furfur/central/internal/metrics"
	"github.com/furfur/central/internal/player"
	"github.com/furfur/central/internal/whitelist"
	"github.com/jackc/pgx/v5"
)

var (
	ErrDonationNotFound = errors.New("donation not found")
	ErrTier             = errors.New("tier must not be negative")
	ErrDuration         = errors.New("duration_days must be positive")
)

type Donation struct {
	ID       int64 `json:"id"`
	PlayerID int64 `json:"player_id"`
	Tier     int   `json:"tier"`
	domain.Validity
	PlayerCkey      *string      `json:"player_ckey"`
	PlayerDiscordID *string      `json:"player_discord_id"`
	State           domain.State `json:"state"`
}

type CreateRequest struct {
	Player player.Ref `json:"player"`
	Tier   int        `json:"tier" binding:"gte=0"`
	// DurationDays falls back to the configured default when zero.
	DurationDays int `json:"duration_days,omitempty" binding:"gte=0,lte=36500"`
}

// Created is the result of a donation creation, including the outcome of the grant bridge.
type Created struct {
	Donation Donation          `json:"donation"`
	Grants   []whitelist.Grant `json:"grants"`
	Skipped  []string          `json:"skipped"`
}

type Patch struct {
	ExpirationTime *time.Time `json:"expiration_time,omitempty"`
	Valid          *bool      `json:"valid,omitempty"`
}

type Query struct {
	query.Filter
	PlayerID        int64  `json:"player_id" schema:"player_id" url:"player_id,omitempty"`
	Ckey            string `json:"ckey" schema:"ckey" url:"ckey,omitempty"`
	DiscordID       string `json:"discord_id" schema:"discord_id" url:"discord_id,omitempty"`
	MinTier         int    `json:"min_tier" schema:"min_tier" url:"min_tier,omitempty"`
	IncludeInactive bool   `json:"include_inactive" schema:"include_inactive" url:"include_inactive,omitempty"`
}

type Donations struct {
	repo    Repository
	db      database.Database
	players player.Players
	bridge  Bridge
	conf    config.Donation
	metrics *metrics.Metrics
}

func NewDonations(repo Repository, players player.Players, bridge Bridge, conf config.Donation, collector *metrics.Metrics) Donations {
	return Donations{repo: repo, db: repo.db, players: players, bridge: bridge, conf: conf, metrics: collector}
}

// Create records a donation and then runs the grant bridge for it. The donation row is committed
// before any grant is attempted, so a bridge failure never removes the donation.
func (d Donations) Create(ctx context.Context, req CreateRequest) (Created, error) {
	if req.Tier < 0 {
		return Created{}, errors.Join(ErrTier, domain.ErrValidation)
	}

	days := req.DurationDays
	if days == 0 {
		days = d.conf.DurationDays
	}

	if days <= 0 {
		return Created{}, errors.Join(ErrDuration, domain.ErrValidation)
	}

	donor, errDonor := d.players.ResolveOrCreate(ctx, req.Player)
	if errDonor != nil {
		return Created{}, errDonor
	}

	donation := Donation{
		PlayerID: donor.ID,
		Tier:     req.Tier,
		Validity: domain.NewValidity(domain.Now(), domain.Days(days)),
	}

	if err := d.repo.Insert(ctx, d.db.Pool(), &donation); err != nil {
		return Created{}, err
	}

	d.metrics.DonationRecorded(strconv.Itoa(donation.Tier))
	slog.Info("Recorded donation", slog.Int64("donation_id", donation.ID), slog.Int64("player_id", donor.ID),
		slog.Int("tier", donation.Tier), slog.String("expires", humanize.Time(donation.ExpirationTime)))

	stored, errGet := d.Get(ctx, donation.ID)
	if errGet != nil {
		return Created{}, errGet
	}

	result, errBridge := d.bridge.Apply(ctx, stored, days)
	if errBridge != nil {
		return Created{Donation: stored}, errBridge
	}

	result.Donation = stored

	return result, nil
}

// Patch overwrites the supplied fields of a donation.
func (d Donations) Patch(ctx context.Context, donationID int64, patch Patch) (Donation, error) {
	errTx := d.db.WrapTx(ctx, func(tx pgx.Tx) error {
		donation, errGet := d.repo.Get(ctx, tx, donationID, true)
		if errGet != nil {
			return notFound(donationID, errGet)
		}

		if patch.ExpirationTime != nil {
			donation.ExpirationTime = patch.ExpirationTime.UTC().Truncate(time.Microsecond)
		}

		if patch.Valid != nil {
			donation.Valid = *patch.Valid
		}

		return d.repo.Update(ctx, tx, donation)
	})
	if errTx != nil {
		return Donation{}, errTx
	}

	return d.Get(ctx, donationID)
}

func notFound(donationID int64, err error) error {
	if errors.Is(err, database.ErrNoResult) {
		return errors.Join(fmt.Errorf("%w: %d", ErrDonationNotFound, donationID), domain.ErrNotFound)
	}

	return err
}

func (d Donations) Get(ctx context.Context, donationID int64) (Donation, error) {
	donation, errGet := d.repo.Get(ctx, d.db.Pool(), donationID, false)
	if errGet != nil {
		return Donation{}, notFound(donationID, errGet)
	}

	donation.State = donation.Validity.State(domain.Now())

	return donation, nil
}

func (d Donations) Query(ctx context.Context, filter Query) ([]Donation, int64, error) {
	now := domain.Now()

	donations, count, errQuery := d.repo.Query(ctx, filter, now)
	if errQuery != nil {
		return nil, 0, errQuery
	}

	for idx := range donations {
		donations[idx].State = donations[idx].Validity.State(now)
	}

	return donations, count, nil
}
