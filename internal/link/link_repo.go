package link

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/furfur/central/internal/database"
)

type Repository struct {
	db database.Database
}

func NewRepository(database database.Database) Repository {
	return Repository{db: database}
}

// Upsert inserts token, or replaces the existing token row of the same ckey when it has expired. A
// still valid existing row is left untouched and returned instead. The replacement is a single
// statement so two concurrent callers can never both install a token.
func (r Repository) Upsert(ctx context.Context, token Token, now time.Time) (Token, error) {
	const query = `
		INSERT INTO ckey_link_token (ckey, token, expiration_time) VALUES ($1, $2, $3)
		ON CONFLICT (ckey) DO UPDATE SET token = EXCLUDED.token, expiration_time = EXCLUDED.expiration_time
		WHERE ckey_link_token.expiration_time <= $4
		RETURNING id, ckey, token, expiration_time`

	stored, errScan := scanToken(r.db.QueryRow(ctx, query, token.Ckey, token.Token, token.ExpirationTime, now))
	if errScan == nil {
		return stored, nil
	}

	if !errors.Is(errScan, database.ErrNoResult) {
		return Token{}, errScan
	}

	row, errRow := r.db.QueryRowBuilder(ctx, selectTokens().Where(sq.Eq{"ckey": token.Ckey}))
	if errRow != nil {
		return Token{}, errRow
	}

	return scanToken(row)
}

func selectTokens() sq.SelectBuilder {
	return database.Builder().
		Select("id", "ckey", "token", "expiration_time").
		From("ckey_link_token")
}

func scanToken(row interface{ Scan(dest ...any) error }) (Token, error) {
	var token Token
	if errScan := row.Scan(&token.ID, &token.Ckey, &token.Token, &token.ExpirationTime); errScan != nil {
		return Token{}, database.DBErr(errScan)
	}

	token.ExpirationTime = token.ExpirationTime.UTC()

	return token, nil
}

// GetActive returns the unexpired token row matching token.
func (r Repository) GetActive(ctx context.Context, token string, now time.Time) (Token, error) {
	row, errRow := r.db.QueryRowBuilder(ctx, selectTokens().Where(sq.And{
		sq.Eq{"token": token},
		sq.Gt{"expiration_time": now},
	}))
	if errRow != nil {
		return Token{}, errRow
	}

	return scanToken(row)
}

func (r Repository) Delete(ctx context.Context, tokenID int64) error {
	_, errExec := database.ExecWith(ctx, r.db.Pool(), database.Builder().
		Delete("ckey_link_token").
		Where(sq.Eq{"id": tokenID}))

	return errExec
}
