package player

import (
	"context"
	"errors"

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

func (r Repository) selectPlayers() sq.SelectBuilder {
	return database.Builder().
		Select("p.id", "p.discord_id", "p.ckey", "p.created_on", "p.updated_on").
		From("player p")
}

func refClause(ref Ref) (sq.Eq, error) {
	kind, errKind := ref.Kind()
	if errKind != nil {
		return nil, errKind
	}

	switch kind {
	case RefByID:
		return sq.Eq{"p.id": ref.ID}, nil
	case RefByCkey:
		return sq.Eq{"p.ckey": ref.Ckey}, nil
	case RefByDiscordID:
		return sq.Eq{"p.discord_id": ref.DiscordID}, nil
	default:
		return nil, errors.Join(ErrInvalidRef, domain.ErrValidation)
	}
}

// Get loads a single player. When forUpdate is set the row is locked until the end of the enclosing transaction.
func (r Repository) Get(ctx context.Context, exec database.Executor, ref Ref, forUpdate bool) (Player, error) {
	clause, errClause := refClause(ref)
	if errClause != nil {
		return Player{}, errClause
	}

	builder := r.selectPlayers().Where(clause)
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}

	row, errRow := database.QueryRowWith(ctx, exec, builder)
	if errRow != nil {
		return Player{}, errRow
	}

	var player Player
	if errScan := row.Scan(&player.ID, &player.DiscordID, &player.Ckey, &player.CreatedOn, &player.UpdatedOn); errScan != nil {
		return Player{}, database.DBErr(errScan)
	}

	return player, nil
}

func (r Repository) Insert(ctx context.Context, exec database.Executor, player *Player) error {
	now := domain.Now()

	query, args, errQuery := database.Builder().
		Insert("player").
		SetMap(map[string]any{
			"discord_id": player.DiscordID,
			"ckey":       player.Ckey,
			"created_on": now,
			"updated_on": now,
		}).
		Suffix("RETURNING id").
		ToSql()
	if errQuery != nil {
		return errors.Join(errQuery, database.ErrCreateQuery)
	}

	if errScan := exec.QueryRow(ctx, query, args...).Scan(&player.ID); errScan != nil {
		return database.DBErr(errScan)
	}

	player.CreatedOn = now
	player.UpdatedOn = now

	return nil
}

// InsertOrGetDiscord inserts a discord only stub, or loads the existing row when a concurrent request
// created it first.
func (r Repository) InsertOrGetDiscord(ctx context.Context, exec database.Executor, player *Player) error {
	now := domain.Now()

	const insert = `
		INSERT INTO player (discord_id, created_on, updated_on) VALUES ($1, $2, $2)
		ON CONFLICT (discord_id) DO NOTHING
		RETURNING id, discord_id, ckey, created_on, updated_on`

	errScan := exec.QueryRow(ctx, insert, player.DiscordID, now).
		Scan(&player.ID, &player.DiscordID, &player.Ckey, &player.CreatedOn, &player.UpdatedOn)
	if errScan == nil {
		return nil
	}

	if errDB := database.DBErr(errScan); !errors.Is(errDB, database.ErrNoResult) {
		return errDB
	}

	existing, errGet := r.Get(ctx, exec, ByDiscordID(*player.DiscordID), false)
	if errGet != nil {
		return errGet
	}

	*player = existing

	return nil
}

// Update writes both identifiers of an existing player.
func (r Repository) Update(ctx context.Context, exec database.Executor, player *Player) error {
	player.UpdatedOn = domain.Now()

	affected, errExec := database.ExecWith(ctx, exec, database.Builder().
		Update("player").
		SetMap(map[string]any{
			"discord_id": player.DiscordID,
			"ckey":       player.Ckey,
			"updated_on": player.UpdatedOn,
		}).
		Where(sq.Eq{"id": player.ID}))
	if errExec != nil {
		return errExec
	}

	if affected == 0 {
		return database.ErrNoResult
	}

	return nil
}

func (r Repository) Query(ctx context.Context, filter PlayerQuery) ([]Player, int64, error) {
	var ands sq.And

	if filter.Ckey != "" {
		ands = append(ands, sq.Eq{"p.ckey": filter.Ckey})
	}

	if filter.DiscordID != "" {
		ands = append(ands, sq.Eq{"p.discord_id": filter.DiscordID})
	}

	if filter.Partial {
		ands = append(ands, sq.Or{sq.Eq{"p.ckey": nil}, sq.Eq{"p.discord_id": nil}})
	}

	builder := r.selectPlayers()
	countBuilder := database.Builder().Select("COUNT(p.id)").From("player p")

	if len(ands) > 0 {
		builder = builder.Where(ands)
		countBuilder = countBuilder.Where(ands)
	}

	builder = filter.ApplySafeOrder(builder, map[string][]string{
		"p.": {"id", "ckey", "discord_id", "created_on", "updated_on"},
	}, "p.id")
	builder = filter.ApplyLimitOffsetDefault(builder)

	rows, errQuery := r.db.QueryBuilder(ctx, builder)
	if errQuery != nil {
		return nil, 0, database.DBErr(errQuery)
	}

	defer rows.Close()

	players := []Player{}

	for rows.Next() {
		var player Player
		if errScan := rows.Scan(&player.ID, &player.DiscordID, &player.Ckey, &player.CreatedOn, &player.UpdatedOn); errScan != nil {
			return nil, 0, database.DBErr(errScan)
		}

		players = append(players, player)
	}

	if errRows := rows.Err(); errRows != nil {
		return nil, 0, database.DBErr(errRows)
	}

	count, errCount := r.db.GetCount(ctx, countBuilder)
	if errCount != nil {
		return nil, 0, errCount
	}

	return players, count, nil
}
