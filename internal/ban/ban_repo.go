package ban

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

func (r Repository) Insert(ctx context.Context, exec database.Executor, ban *Ban) error {
	query, args, errQuery := database.Builder().
		Insert("ban").
		SetMap(map[string]any{
			"player_id":       ban.PlayerID,
			"admin_id":        ban.AdminID,
			"issue_time":      ban.IssueTime,
			"expiration_time": ban.ExpirationTime,
			"reason":          ban.Reason,
			"valid":           ban.Valid,
		}).
		Suffix("RETURNING id").
		ToSql()
	if errQuery != nil {
		return errors.Join(errQuery, database.ErrCreateQuery)
	}

	return database.DBErr(exec.QueryRow(ctx, query, args...).Scan(&ban.ID))
}

// InsertTargets stores targets for banID. A second target of the same type on one ban violates
// ban_target_uniq and is reported as an integrity error.
func (r Repository) InsertTargets(ctx context.Context, exec database.Executor, banID int64, targets []Target) error {
	if len(targets) == 0 {
		return nil
	}

	builder := database.Builder().
		Insert("ban_target").
		Columns("ban_id", "target_type", "target")

	for _, target := range targets {
		builder = builder.Values(banID, string(target.Type), target.Target)
	}

	if _, errExec := database.ExecWith(ctx, exec, builder); errExec != nil {
		if errors.Is(errExec, database.ErrDuplicate) {
			return errors.Join(errExec, domain.ErrIntegrity)
		}

		return errExec
	}

	return nil
}

func (r Repository) DeleteTargets(ctx context.Context, exec database.Executor, banID int64) error {
	_, errExec := database.ExecWith(ctx, exec, database.Builder().
		Delete("ban_target").
		Where(sq.Eq{"ban_id": banID}))

	return errExec
}

// Targets loads the targets of every ban in banIDs, keyed by ban id.
func (r Repository) Targets(ctx context.Context, banIDs []int64) (map[int64][]Target, error) {
	targets := map[int64][]Target{}
	if len(banIDs) == 0 {
		return targets, nil
	}

	rows, errQuery := r.db.QueryBuilder(ctx, database.Builder().
		Select("ban_id", "target_type", "target").
		From("ban_target").
		Where(sq.Eq{"ban_id": banIDs}).
		OrderBy("id"))
	if errQuery != nil {
		return nil, database.DBErr(errQuery)
	}

	defer rows.Close()

	for rows.Next() {
		var (
			banID  int64
			target Target
		)

		if errScan := rows.Scan(&banID, &target.Type, &target.Target); errScan != nil {
			return nil, database.DBErr(errScan)
		}

		targets[banID] = append(targets[banID], target)
	}

	return targets, database.DBErr(rows.Err())
}

func selectBans() sq.SelectBuilder {
	return database.Builder().
		Select("b.id", "b.player_id", "b.admin_id", "b.issue_time", "b.expiration_time", "b.valid", "b.reason",
			"p.ckey", "p.discord_id").
		From("ban b").
		Join("player p ON p.id = b.player_id").
		Join("player a ON a.id = b.admin_id")
}

func scanBan(row scanner) (Ban, error) {
	var ban Ban
	if errScan := row.Scan(&ban.ID, &ban.PlayerID, &ban.AdminID, &ban.IssueTime, &ban.ExpirationTime, &ban.Valid,
		&ban.Reason, &ban.PlayerCkey, &ban.PlayerDiscordID); errScan != nil {
		return Ban{}, database.DBErr(errScan)
	}

	ban.IssueTime = ban.IssueTime.UTC()
	ban.ExpirationTime = ban.ExpirationTime.UTC()

	return ban, nil
}

func (r Repository) Get(ctx context.Context, exec database.Executor, banID int64, forUpdate bool) (Ban, error) {
	builder := selectBans().Where(sq.Eq{"b.id": banID})
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE OF b")
	}

	row, errRow := database.QueryRowWith(ctx, exec, builder)
	if errRow != nil {
		return Ban{}, errRow
	}

	return scanBan(row)
}

func (r Repository) Update(ctx context.Context, exec database.Executor, ban Ban) error {
	affected, errExec := database.ExecWith(ctx, exec, database.Builder().
		Update("ban").
		SetMap(map[string]any{
			"expiration_time": ban.ExpirationTime,
			"reason":          ban.Reason,
			"valid":           ban.Valid,
		}).
		Where(sq.Eq{"id": ban.ID}))
	if errExec != nil {
		return errExec
	}

	if affected == 0 {
		return database.ErrNoResult
	}

	return nil
}

// AppendHistory inserts a history row. History rows are never updated or deleted.
func (r Repository) AppendHistory(ctx context.Context, exec database.Executor, entry *History) error {
	query, args, errQuery := database.Builder().
		Insert("ban_history").
		SetMap(map[string]any{
			"ban_id":     entry.BanID,
			"admin_id":   entry.AdminID,
			"action":     string(entry.Action),
			"details":    entry.Details,
			"created_on": entry.CreatedOn,
		}).
		Suffix("RETURNING id").
		ToSql()
	if errQuery != nil {
		return errors.Join(errQuery, database.ErrCreateQuery)
	}

	return database.DBErr(exec.QueryRow(ctx, query, args...).Scan(&entry.ID))
}

func (r Repository) History(ctx context.Context, banID int64) ([]History, error) {
	rows, errQuery := r.db.QueryBuilder(ctx, database.Builder().
		Select("id", "ban_id", "admin_id", "action", "details", "created_on").
		From("ban_history").
		Where(sq.Eq{"ban_id": banID}).
		OrderBy("id ASC"))
	if errQuery != nil {
		return nil, database.DBErr(errQuery)
	}

	defer rows.Close()

	history := []History{}

	for rows.Next() {
		var entry History
		if errScan := rows.Scan(&entry.ID, &entry.BanID, &entry.AdminID, &entry.Action, &entry.Details,
			&entry.CreatedOn); errScan != nil {
			return nil, database.DBErr(errScan)
		}

		entry.CreatedOn = entry.CreatedOn.UTC()
		history = append(history, entry)
	}

	return history, database.DBErr(rows.Err())
}

func queryClause(filter Query, now time.Time) sq.And {
	var ands sq.And

	if filter.PlayerID > 0 {
		ands = append(ands, sq.Eq{"b.player_id": filter.PlayerID})
	}

	if filter.Ckey != "" {
		ands = append(ands, sq.Eq{"p.ckey": filter.Ckey})
	}

	if filter.DiscordID != "" {
		ands = append(ands, sq.Eq{"p.discord_id": filter.DiscordID})
	}

	if filter.AdminID > 0 {
		ands = append(ands, sq.Eq{"b.admin_id": filter.AdminID})
	}

	if filter.AdminCkey != "" {
		ands = append(ands, sq.Eq{"a.ckey": filter.AdminCkey})
	}

	if filter.AdminDiscordID != "" {
		ands = append(ands, sq.Eq{"a.discord_id": filter.AdminDiscordID})
	}

	if !filter.IncludeInactive {
		ands = append(ands, domain.ActiveClause("b.", now))
	}

	return ands
}

func (r Repository) Query(ctx context.Context, filter Query, now time.Time) ([]Ban, int64, error) {
	ands := queryClause(filter, now)

	builder := selectBans()
	countBuilder := database.Builder().
		Select("COUNT(b.id)").
		From("ban b").
		Join("player p ON p.id = b.player_id").
		Join("player a ON a.id = b.admin_id")

	if len(ands) > 0 {
		builder = builder.Where(ands)
		countBuilder = countBuilder.Where(ands)
	}

	builder = filter.ApplySafeOrder(builder, map[string][]string{
		"b.": {"id", "player_id", "admin_id", "issue_time", "expiration_time", "valid"},
	}, "b.id")
	builder = filter.ApplyLimitOffsetDefault(builder)

	rows, errQuery := r.db.QueryBuilder(ctx, builder)
	if errQuery != nil {
		return nil, 0, database.DBErr(errQuery)
	}

	defer rows.Close()

	bans := []Ban{}

	for rows.Next() {
		ban, errScan := scanBan(rows)
		if errScan != nil {
			return nil, 0, errScan
		}

		bans = append(bans, ban)
	}

	if errRows := rows.Err(); errRows != nil {
		return nil, 0, database.DBErr(errRows)
	}

	count, errCount := r.db.GetCount(ctx, countBuilder)
	if errCount != nil {
		return nil, 0, errCount
	}

	return bans, count, nil
}
