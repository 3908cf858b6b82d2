package auth

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/furfur/central/internal/database"
	"github.com/gofrs/uuid/v5"
)

type Repository struct {
	db database.Database
}

func NewRepository(database database.Database) Repository {
	return Repository{db: database}
}

func (r Repository) Insert(ctx context.Context, apiAuth APIAuth) error {
	_, errExec := database.ExecWith(ctx, r.db.Pool(), r.db.
		Builder().
		Insert("api_auth").
		SetMap(map[string]any{
			"auth_id":    apiAuth.AuthID,
			"name":       apiAuth.Name,
			"token_hash": apiAuth.TokenHash,
			"created_on": apiAuth.CreatedOn,
		}))

	return errExec
}

func (r Repository) GetByHash(ctx context.Context, tokenHash string) (APIAuth, error) {
	row, errRow := r.db.QueryRowBuilder(ctx, r.db.
		Builder().
		Select("auth_id", "name", "token_hash", "created_on").
		From("api_auth").
		Where(sq.Eq{"token_hash": tokenHash}))
	if errRow != nil {
		return APIAuth{}, database.DBErr(errRow)
	}

	var apiAuth APIAuth
	if errScan := row.Scan(&apiAuth.AuthID, &apiAuth.Name, &apiAuth.TokenHash, &apiAuth.CreatedOn); errScan != nil {
		return APIAuth{}, database.DBErr(errScan)
	}

	return apiAuth, nil
}

func (r Repository) List(ctx context.Context) ([]APIAuth, error) {
	rows, errRows := r.db.QueryBuilder(ctx, r.db.
		Builder().
		Select("auth_id", "name", "token_hash", "created_on").
		From("api_auth").
		OrderBy("created_on"))
	if errRows != nil {
		return nil, database.DBErr(errRows)
	}

	defer rows.Close()

	auths := []APIAuth{}

	for rows.Next() {
		var apiAuth APIAuth
		if errScan := rows.Scan(&apiAuth.AuthID, &apiAuth.Name, &apiAuth.TokenHash, &apiAuth.CreatedOn); errScan != nil {
			return nil, database.DBErr(errScan)
		}

		auths = append(auths, apiAuth)
	}

	return auths, database.DBErr(rows.Err())
}

func (r Repository) Delete(ctx context.Context, authID uuid.UUID) error {
	affected, errExec := database.ExecWith(ctx, r.db.Pool(), r.db.
		Builder().
		Delete("api_auth").
		Where(sq.Eq{"auth_id": authID}))
	if errExec != nil {
		return errExec
	}

	if affected == 0 {
		return database.ErrNoResult
	}

	return nil
}
