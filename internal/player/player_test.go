package player_test

import (
	"os"
	"testing"

	"github.com/furfur/central/internal/domain"
	"github.com/furfur/central/internal/player"
	"github.com/furfur/central/internal/tests"
	"github.com/stretchr/testify/require"
)

var fixture *tests.Fixture //nolint:gochecknoglobals

func TestMain(m *testing.M) {
	fixture = tests.NewFixture()

	code := m.Run()

	fixture.Close()
	os.Exit(code)
}

func newPlayers() player.Players {
	return player.NewPlayers(player.NewRepository(fixture.Database), nil)
}

func TestRefKind(t *testing.T) {
	t.Parallel()

	kind, err := player.ByID(1).Kind()
	require.NoError(t, err)
	require.Equal(t, player.RefByID, kind)

	kind, err = player.ByCkey("abc").Kind()
	require.NoError(t, err)
	require.Equal(t, player.RefByCkey, kind)

	kind, err = player.ByDiscordID("123").Kind()
	require.NoError(t, err)
	require.Equal(t, player.RefByDiscordID, kind)

	_, err = player.Ref{}.Kind()
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = player.Ref{Ckey: "abc", DiscordID: "123"}.Kind()
	require.ErrorIs(t, err, player.ErrInvalidRef)
}

func TestCreateAndResolve(t *testing.T) {
	fixture.Require(t)
	t.Parallel()

	players := newPlayers()
	ckey, discordID := tests.RandCkey(), tests.RandDiscordID()

	created, errCreate := players.Create(t.Context(), player.CreateRequest{Ckey: ckey, DiscordID: discordID})
	require.NoError(t, errCreate)
	require.Positive(t, created.ID)

	for _, ref := range []player.Ref{player.ByID(created.ID), player.ByCkey(ckey), player.ByDiscordID(discordID)} {
		found, errFound := players.Resolve(t.Context(), ref)
		require.NoError(t, errFound)
		require.Equal(t, created.ID, found.ID)
		require.Equal(t, ckey, *found.Ckey)
		require.Equal(t, discordID, *found.DiscordID)
	}

	_, errMissing := players.ByCkey(t.Context(), tests.RandCkey())
	require.ErrorIs(t, errMissing, domain.ErrNotFound)

	_, errDupe := players.Create(t.Context(), player.CreateRequest{Ckey: ckey})
	require.ErrorIs(t, errDupe, domain.ErrConflict)

	_, errEmpty := players.Create(t.Context(), player.CreateRequest{})
	require.ErrorIs(t, errEmpty, domain.ErrValidation)
}

func TestGetOrCreateByDiscordID(t *testing.T) {
	fixture.Require(t)
	t.Parallel()

	players := newPlayers()
	discordID := tests.RandDiscordID()

	stub, errStub := players.GetOrCreateByDiscordID(t.Context(), discordID)
	require.NoError(t, errStub)
	require.Nil(t, stub.Ckey)
	require.Equal(t, discordID, *stub.DiscordID)

	again, errAgain := players.ResolveOrCreate(t.Context(), player.ByDiscordID(discordID))
	require.NoError(t, errAgain)
	require.Equal(t, stub.ID, again.ID)

	_, errCkey := players.ResolveOrCreate(t.Context(), player.ByCkey(tests.RandCkey()))
	require.ErrorIs(t, errCkey, domain.ErrNotFound)
}

func TestLink(t *testing.T) {
	fixture.Require(t)
	t.Parallel()

	players := newPlayers()

	t.Run("new", func(t *testing.T) {
		ckey, discordID := tests.RandCkey(), tests.RandDiscordID()

		linked, err := players.Link(t.Context(), ckey, discordID)
		require.NoError(t, err)
		require.Equal(t, ckey, *linked.Ckey)
		require.Equal(t, discordID, *linked.DiscordID)

		again, errAgain := players.Link(t.Context(), ckey, discordID)
		require.NoError(t, errAgain)
		require.Equal(t, linked.ID, again.ID)
	})

	t.Run("merge_discord_stub", func(t *testing.T) {
		ckey, discordID := tests.RandCkey(), tests.RandDiscordID()

		stub, errStub := players.GetOrCreateByDiscordID(t.Context(), discordID)
		require.NoError(t, errStub)

		linked, err := players.Link(t.Context(), ckey, discordID)
		require.NoError(t, err)
		require.Equal(t, stub.ID, linked.ID)
		require.Equal(t, ckey, *linked.Ckey)
	})

	t.Run("merge_ckey_only", func(t *testing.T) {
		ckey, discordID := tests.RandCkey(), tests.RandDiscordID()

		partial, errPartial := players.Create(t.Context(), player.CreateRequest{Ckey: ckey})
		require.NoError(t, errPartial)

		linked, err := players.Link(t.Context(), ckey, discordID)
		require.NoError(t, err)
		require.Equal(t, partial.ID, linked.ID)
		require.Equal(t, discordID, *linked.DiscordID)
	})

	t.Run("already_linked", func(t *testing.T) {
		existing := fixture.CreateTestPlayer(t.Context())
		otherCkey := tests.RandCkey()

		_, err := players.Link(t.Context(), otherCkey, *existing.DiscordID)
		require.ErrorIs(t, err, domain.ErrAlreadyLinked)

		unchanged, errGet := players.ByID(t.Context(), existing.ID)
		require.NoError(t, errGet)
		require.Equal(t, *existing.Ckey, *unchanged.Ckey)
		require.Equal(t, *existing.DiscordID, *unchanged.DiscordID)

		_, errMissing := players.ByCkey(t.Context(), otherCkey)
		require.ErrorIs(t, errMissing, domain.ErrNotFound)
	})

	t.Run("split_identities", func(t *testing.T) {
		ckey, discordID := tests.RandCkey(), tests.RandDiscordID()

		_, errCkey := players.Create(t.Context(), player.CreateRequest{Ckey: ckey})
		require.NoError(t, errCkey)

		_, errDiscord := players.Create(t.Context(), player.CreateRequest{DiscordID: discordID})
		require.NoError(t, errDiscord)

		_, err := players.Link(t.Context(), ckey, discordID)
		require.ErrorIs(t, err, domain.ErrAlreadyLinked)
	})
}

func TestQuery(t *testing.T) {
	fixture.Require(t)
	t.Parallel()

	players := newPlayers()
	created := fixture.CreateTestPlayer(t.Context())

	found, count, err := players.Query(t.Context(), player.PlayerQuery{Ckey: *created.Ckey})
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	require.Len(t, found, 1)
	require.Equal(t, created.ID, found[0].ID)
}
