package donation

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/furfur/central/internal/database"
	"github.com/furfur/central/internal/domain"
)

type Repository struct {
	db database.Database
}

func NewRepository(database database.Database) Repository {
	return Repository{db: database}
}

type scanner interface {
	Scan(dest ...any) error
}

func (r Repository) Insert(ctx context.Context, exec database.Executor, donation *Donation) error {
	query, args, errQuery := database.Builder().
		Insert("donation").
		SetMap(map[string]any{
			"player_id":       donation.PlayerID,
			"tier":            donation.Tier,
			"issue_time":      donation.IssueTime,
			"expiration_time": donation.ExpirationTime,
			"valid":           donation.Valid,
		}).
		Suffix("RETURNING id").
		ToSql()
	if errQuery != nil {
		return errors.Join(errQuery, database.ErrCreateQuery)
	}

	return database.DBErr(exec.QueryRow(ctx, query, args...).Scan(&donation.ID))
}

func selectDonations() sq.SelectBuilder {
	return database.Builder().
		Select("d.id", "d.player_id", "d.tier", "d.issue_time", "d.expiration_time", "d.valid", "p.ckey",
			"p.discord_id").
		From("donation d").
		Join("player p ON p.id = d.player_id")
}

func scanDonation(row scanner) (Donation, error) {
	var donation Donation
	if errScan := row.Scan(&donation.ID, &donation.PlayerID, &donation.Tier, &donation.IssueTime,
		&donation.ExpirationTime, &donation.Valid, &donation.PlayerCkey, &donation.PlayerDiscordID); errScan != nil {
		return Donation{}, database.DBErr(errScan)
	}

	donation.IssueTime = donation.IssueTime.UTC()
	donation.ExpirationTime = donation.ExpirationTime.UTC()

	return donation, nil
}

func (r Repository) Get(ctx context.Context, exec database.Executor, donationID int64, forUpdate bool) (Donation, error) {
	builder := selectDonations().Where(sq.Eq{"d.id": donationID})
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE OF d")
	}

	row, errRow := database.QueryRowWith(ctx, exec, builder)
	if errRow != nil {
		return Donation{}, errRow
	}

	return scanDonation(row)
}

func (r Repository) Update(ctx context.Context, exec database.Executor, donation Donation) error {
	affected, errExec := database.ExecWith(ctx, exec, database.Builder().
		Update("donation").
		SetMap(map[string]any{
			"expiration_time": donation.ExpirationTime,
			"valid":           donation.Valid,
		}).
		Where(sq.Eq{"id": donation.ID}))
	if errExec != nil {
		return errExec
	}

	if affected == 0 {
		return database.ErrNoResult
	}

	return nil
}

func (r Repository) Query(ctx context.Context, filter Query, now time.Time) ([]Donation, int64, error) {
	var ands sq.And

	if filter.PlayerID > 0 {
		ands = append(ands, sq.Eq{"d.player_id": filter.PlayerID})
	}

	if filter.Ckey != "" {
		ands = append(ands, sq.Eq{"p.ckey": filter.Ckey})
	}

	if filter.DiscordID != "" {
		ands = append(ands, sq.Eq{"p.discord_id": filter.DiscordID})
	}

	if filter.MinTier > 0 {
		ands = append(ands, sq.GtOrEq{"d.tier": filter.MinTier})
	}

	if !filter.IncludeInactive {
		ands = append(ands, domain.ActiveClause("d.", now))
	}

	builder := selectDonations()
	countBuilder := database.Builder().
		Select("COUNT(d.id)").
		From("donation d").
		Join("player p ON p.id = d.player_id")

	if len(ands) > 0 {
		builder = builder.Where(ands)
		countBuilder = countBuilder.Where(ands)
	}

	builder = filter.ApplySafeOrder(builder, map[string][]string{
		"d.": {"id", "player_id", "tier", "issue_time", "expiration_time", "valid"},
	}, "d.id")
	builder = filter.ApplyLimitOffsetDefault(builder)

	rows, errQuery := r.db.QueryBuilder(ctx, builder)
	if errQuery != nil {
		return nil, 0, database.DBErr(errQuery)
	}

	defer rows.Close()

	donations := []Donation{}

	for rows.Next() {
		donation, errScan := scanDonation(rows)
		if errScan != nil {
			return nil, 0, errScan
		}

		donations = append(donations, donation)
	}

	if errRows := rows.Err(); errRows != nil {
		return nil, 0, database.DBErr(errRows)
	}

	count, errCount := r.db.GetCount(ctx, countBuilder)
	if errCount != nil {
		return nil, 0, errCount
	}

	return donations, count, nil
}
