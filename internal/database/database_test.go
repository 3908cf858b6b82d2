package database_test

import (
	"errors"
	"testing"

	"github.com/furfur/central/internal/database"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestDBErr(t *testing.T) {
	require.NoError(t, database.DBErr(nil))
	require.ErrorIs(t, database.DBErr(pgx.ErrNoRows), database.ErrNoResult)

	unique := &pgconn.PgError{Code: pgerrcode.UniqueViolation}
	require.ErrorIs(t, database.DBErr(unique), database.ErrDuplicate)

	foreign := &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}
	require.ErrorIs(t, database.DBErr(foreign), database.ErrIntegrity)
	require.NotErrorIs(t, database.DBErr(foreign), database.ErrDuplicate)

	other := errors.New("other")
	require.Equal(t, other, database.DBErr(other))
}
