package query_test

import (
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/furfur/central/internal/database/query"
	"github.com/stretchr/testify/require"
)

func TestApplyLimitOffset(t *testing.T) {
	builder := sq.Select("id").From("player")

	sql, _, err := query.Filter{}.ApplyLimitOffsetDefault(builder).ToSql()
	require.NoError(t, err)
	require.Equal(t, "SELECT id FROM player LIMIT 100", sql)

	sql, _, err = query.Filter{Limit: 10, Offset: 20}.ApplyLimitOffsetDefault(builder).ToSql()
	require.NoError(t, err)
	require.Equal(t, "SELECT id FROM player LIMIT 10 OFFSET 20", sql)

	sql, _, err = query.Filter{Limit: 5000}.ApplyLimitOffset(builder, 50).ToSql()
	require.NoError(t, err)
	require.Equal(t, "SELECT id FROM player LIMIT 50", sql)
}

func TestApplySafeOrder(t *testing.T) {
	builder := sq.Select("id").From("player p")
	columns := map[string][]string{"p.": {"id", "ckey"}}

	sql, _, err := query.Filter{OrderBy: "CKEY", Desc: true}.ApplySafeOrder(builder, columns, "p.id").ToSql()
	require.NoError(t, err)
	require.Equal(t, "SELECT id FROM player p ORDER BY p.ckey DESC", sql)

	sql, _, err = query.Filter{OrderBy: "1; DROP TABLE player"}.ApplySafeOrder(builder, columns, "p.id").ToSql()
	require.NoError(t, err)
	require.Equal(t, "SELECT id FROM player p ORDER BY p.id ASC", sql)
}
