package whitelist

import (
	"context"
	"errors"
	"strconv"
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

// LockCategory serialises grant and ban issuance for a single (player, server_type) pair until the
// enclosing transaction ends.
func (r Repository) LockCategory(ctx context.Context, exec database.Executor, playerID int64, serverType string) error {
	const query = `SELECT pg_advisory_xact_lock(hashtextextended($1::text || ':' || $2::text, 0))`

	if _, errExec := exec.Exec(ctx, query, strconv.FormatInt(playerID, 10), serverType); errExec != nil {
		return database.DBErr(errExec)
	}

	return nil
}

// HasActiveBan reports whether an active whitelist ban exists for the player and server type.
func (r Repository) HasActiveBan(ctx context.Context, exec database.Executor, playerID int64, serverType string, now time.Time) (bool, error) {
	row, errRow := database.QueryRowWith(ctx, exec, database.Builder().
		Select("1").
		Prefix("SELECT EXISTS (").
		From("whitelist_ban b").
		Where(sq.And{
			sq.Eq{"b.player_id": playerID, "b.server_type": serverType},
			domain.ActiveClause("b.", now),
		}).
		Suffix(")"))
	if errRow != nil {
		return false, errRow
	}

	var exists bool
	if errScan := row.Scan(&exists); errScan != nil {
		return false, database.DBErr(errScan)
	}

	return exists, nil
}

// InvalidateGrants sets valid = false on every active grant of the player in serverType, returning the
// number of grants changed.
func (r Repository) InvalidateGrants(ctx context.Context, exec database.Executor, playerID int64, serverType string, now time.Time) (int64, error) {
	return database.ExecWith(ctx, exec, database.Builder().
		Update("whitelist").
		Set("valid", false).
		Where(sq.And{
			sq.Eq{"player_id": playerID, "server_type": serverType},
			domain.ActiveClause("", now),
		}))
}

func (r Repository) InsertGrant(ctx context.Context, exec database.Executor, grant *Grant) error {
	row, errRow := insertReturning(ctx, exec, database.Builder().
		Insert("whitelist").
		SetMap(map[string]any{
			"player_id":       grant.PlayerID,
			"admin_id":        grant.AdminID,
			"server_type":     grant.ServerType,
			"issue_time":      grant.IssueTime,
			"expiration_time": grant.ExpirationTime,
			"valid":           grant.Valid,
		}))
	if errRow != nil {
		return errRow
	}

	return database.DBErr(row.Scan(&grant.ID))
}

func (r Repository) InsertBan(ctx context.Context, exec database.Executor, ban *Ban) error {
	row, errRow := insertReturning(ctx, exec, database.Builder().
		Insert("whitelist_ban").
		SetMap(map[string]any{
			"player_id":       ban.PlayerID,
			"admin_id":        ban.AdminID,
			"server_type":     ban.ServerType,
			"issue_time":      ban.IssueTime,
			"expiration_time": ban.ExpirationTime,
			"valid":           ban.Valid,
			"reason":          ban.Reason,
		}))
	if errRow != nil {
		return errRow
	}

	return database.DBErr(row.Scan(&ban.ID))
}

type scanner interface {
	Scan(dest ...any) error
}

func insertReturning(ctx context.Context, exec database.Executor, builder sq.InsertBuilder) (scanner, error) {
	query, args, errQuery := builder.Suffix("RETURNING id").ToSql()
	if errQuery != nil {
		return nil, errors.Join(errQuery, database.ErrCreateQuery)
	}

	return exec.QueryRow(ctx, query, args...), nil
}

func selectGrants() sq.SelectBuilder {
	return database.Builder().
		Select("w.id", "w.player_id", "w.admin_id", "w.server_type", "w.issue_time", "w.expiration_time",
			"w.valid", "p.ckey", "p.discord_id").
		From("whitelist w").
		Join("player p ON p.id = w.player_id").
		Join("player a ON a.id = w.admin_id")
}

func selectBans() sq.SelectBuilder {
	return database.Builder().
		Select("w.id", "w.player_id", "w.admin_id", "w.server_type", "w.issue_time", "w.expiration_time",
			"w.valid", "p.ckey", "p.discord_id", "w.reason").
		From("whitelist_ban w").
		Join("player p ON p.id = w.player_id").
		Join("player a ON a.id = w.admin_id")
}

func scanGrant(row scanner) (Grant, error) {
	var grant Grant
	if errScan := row.Scan(&grant.ID, &grant.PlayerID, &grant.AdminID, &grant.ServerType, &grant.IssueTime,
		&grant.ExpirationTime, &grant.Valid, &grant.PlayerCkey, &grant.PlayerDiscordID); errScan != nil {
		return Grant{}, database.DBErr(errScan)
	}

	grant.IssueTime = grant.IssueTime.UTC()
	grant.ExpirationTime = grant.ExpirationTime.UTC()

	return grant, nil
}

func scanBan(row scanner) (Ban, error) {
	var ban Ban
	if errScan := row.Scan(&ban.ID, &ban.PlayerID, &ban.AdminID, &ban.ServerType, &ban.IssueTime,
		&ban.ExpirationTime, &ban.Valid, &ban.PlayerCkey, &ban.PlayerDiscordID, &ban.Reason); errScan != nil {
		return Ban{}, database.DBErr(errScan)
	}

	ban.IssueTime = ban.IssueTime.UTC()
	ban.ExpirationTime = ban.ExpirationTime.UTC()

	return ban, nil
}

func (r Repository) GetGrant(ctx context.Context, exec database.Executor, grantID int64, forUpdate bool) (Grant, error) {
	builder := selectGrants().Where(sq.Eq{"w.id": grantID})
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE OF w")
	}

	row, errRow := database.QueryRowWith(ctx, exec, builder)
	if errRow != nil {
		return Grant{}, errRow
	}

	return scanGrant(row)
}

func (r Repository) GetBan(ctx context.Context, exec database.Executor, banID int64, forUpdate bool) (Ban, error) {
	builder := selectBans().Where(sq.Eq{"w.id": banID})
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE OF w")
	}

	row, errRow := database.QueryRowWith(ctx, exec, builder)
	if errRow != nil {
		return Ban{}, errRow
	}

	return scanBan(row)
}

func (r Repository) UpdateGrant(ctx context.Context, exec database.Executor, grant Grant) error {
	affected, errExec := database.ExecWith(ctx, exec, database.Builder().
		Update("whitelist").
		SetMap(map[string]any{
			"server_type":     grant.ServerType,
			"expiration_time": grant.ExpirationTime,
			"valid":           grant.Valid,
		}).
		Where(sq.Eq{"id": grant.ID}))
	if errExec != nil {
		return errExec
	}

	if affected == 0 {
		return database.ErrNoResult
	}

	return nil
}

func (r Repository) UpdateBan(ctx context.Context, exec database.Executor, ban Ban) error {
	affected, errExec := database.ExecWith(ctx, exec, database.Builder().
		Update("whitelist_ban").
		SetMap(map[string]any{
			"server_type":     ban.ServerType,
			"expiration_time": ban.ExpirationTime,
			"valid":           ban.Valid,
			"reason":          ban.Reason,
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

// queryClause combines every supplied filter with an explicit conjunction.
func queryClause(filter Query, now time.Time) sq.And {
	var ands sq.And

	if filter.PlayerID > 0 {
		ands = append(ands, sq.Eq{"w.player_id": filter.PlayerID})
	}

	if filter.Ckey != "" {
		ands = append(ands, sq.Eq{"p.ckey": filter.Ckey})
	}

	if filter.DiscordID != "" {
		ands = append(ands, sq.Eq{"p.discord_id": filter.DiscordID})
	}

	if filter.AdminID > 0 {
		ands = append(ands, sq.Eq{"w.admin_id": filter.AdminID})
	}

	if filter.AdminCkey != "" {
		ands = append(ands, sq.Eq{"a.ckey": filter.AdminCkey})
	}

	if filter.AdminDiscordID != "" {
		ands = append(ands, sq.Eq{"a.discord_id": filter.AdminDiscordID})
	}

	if filter.ServerType != "" {
		ands = append(ands, sq.Eq{"w.server_type": filter.ServerType})
	}

	if !filter.IncludeInactive {
		ands = append(ands, domain.ActiveClause("w.", now))
	}

	return ands
}

var orderColumns = map[string][]string{ //nolint:gochecknoglobals
	"w.": {"id", "player_id", "admin_id", "server_type", "issue_time", "expiration_time", "valid"},
}

func (r Repository) count(ctx context.Context, table string, ands sq.And) (int64, error) {
	builder := database.Builder().
		Select("COUNT(w.id)").
		From(table + " w").
		Join("player p ON p.id = w.player_id").
		Join("player a ON a.id = w.admin_id")

	if len(ands) > 0 {
		builder = builder.Where(ands)
	}

	return r.db.GetCount(ctx, builder)
}

func (r Repository) QueryGrants(ctx context.Context, filter Query, now time.Time) ([]Grant, int64, error) {
	ands := queryClause(filter, now)

	builder := selectGrants()
	if len(ands) > 0 {
		builder = builder.Where(ands)
	}

	builder = filter.ApplySafeOrder(builder, orderColumns, "w.id")
	builder = filter.ApplyLimitOffsetDefault(builder)

	rows, errQuery := r.db.QueryBuilder(ctx, builder)
	if errQuery != nil {
		return nil, 0, database.DBErr(errQuery)
	}

	defer rows.Close()

	grants := []Grant{}

	for rows.Next() {
		grant, errScan := scanGrant(rows)
		if errScan != nil {
			return nil, 0, errScan
		}

		grants = append(grants, grant)
	}

	if errRows := rows.Err(); errRows != nil {
		return nil, 0, database.DBErr(errRows)
	}

	count, errCount := r.count(ctx, "whitelist", ands)
	if errCount != nil {
		return nil, 0, errCount
	}

	return grants, count, nil
}

func (r Repository) QueryBans(ctx context.Context, filter Query, now time.Time) ([]Ban, int64, error) {
	ands := queryClause(filter, now)

	builder := selectBans()
	if len(ands) > 0 {
		builder = builder.Where(ands)
	}

	builder = filter.ApplySafeOrder(builder, orderColumns, "w.id")
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

	count, errCount := r.count(ctx, "whitelist_ban", ands)
	if errCount != nil {
		return nil, 0, errCount
	}

	return bans, count, nil
}

// ActiveIdentifiers returns the distinct non null player identifier column (ckey or discord_id) of every
// player holding an active grant for serverType.
func (r Repository) ActiveIdentifiers(ctx context.Context, column string, serverType string, now time.Time) ([]string, error) {
	if column != "ckey" && column != "discord_id" {
		return nil, database.ErrCreateQuery
	}

	rows, errQuery := r.db.QueryBuilder(ctx, database.Builder().
		Select("DISTINCT p."+column).
		From("whitelist w").
		Join("player p ON p.id = w.player_id").
		Where(sq.And{
			sq.Eq{"w.server_type": serverType},
			sq.NotEq{"p." + column: nil},
			domain.ActiveClause("w.", now),
		}).
		OrderBy("p."+column))
	if errQuery != nil {
		return nil, database.DBErr(errQuery)
	}

	defer rows.Close()

	values := []string{}

	for rows.Next() {
		var value string
		if errScan := rows.Scan(&value); errScan != nil {
			return nil, database.DBErr(errScan)
		}

		values = append(values, value)
	}

	return values, database.DBErr(rows.Err())
}
