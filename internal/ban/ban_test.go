package ban_test

import (
	"os"
	"testing"
	"time"

	"github.com/furfur/central/internal/ban"
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

func newBans() ban.Bans {
	return ban.NewBans(ban.NewRepository(fixture.Database), player.NewPlayers(player.NewRepository(fixture.Database), nil), nil)
}

func ptr[T any](value T) *T {
	return &value
}

func TestCreateAndUnban(t *testing.T) {
	fixture.Require(t)
	t.Parallel()

	var (
		bans   = newBans()
		admin  = fixture.CreateTestPlayer(t.Context())
		target = fixture.CreateTestPlayer(t.Context())
	)

	created, errCreate := bans.Create(t.Context(), ban.CreateRequest{
		Player:       player.ByCkey(*target.Ckey),
		Admin:        player.ByDiscordID(*admin.DiscordID),
		DurationDays: 1,
		Reason:       ptr("test"),
		Targets:      []ban.Target{{Type: ban.TargetGame, Target: "ss13"}},
	})
	require.NoError(t, errCreate)
	require.True(t, created.Valid)
	require.Equal(t, domain.Active, created.State)
	require.Equal(t, []ban.Target{{Type: ban.TargetGame, Target: "ss13"}}, created.Targets)
	require.WithinDuration(t, time.Now().Add(domain.Days(1)), created.ExpirationTime, time.Minute)

	history, errHistory := bans.History(t.Context(), created.ID)
	require.NoError(t, errHistory)
	require.Len(t, history, 1)
	require.Equal(t, ban.ActionCreate, history[0].Action)
	require.Equal(t, "test", *history[0].Details)
	require.Equal(t, admin.ID, history[0].AdminID)

	unbanned, errUnban := bans.Unban(t.Context(), created.ID, ban.UnbanRequest{
		Admin: player.ByID(admin.ID), Reason: "pardoned",
	})
	require.NoError(t, errUnban)
	require.False(t, unbanned.Valid)
	require.Equal(t, domain.Invalidated, unbanned.State)

	history, errHistory = bans.History(t.Context(), created.ID)
	require.NoError(t, errHistory)
	require.Len(t, history, 2)
	require.Equal(t, ban.ActionInvalidate, history[1].Action)
	require.Equal(t, "pardoned", *history[1].Details)

	_, errAgain := bans.Unban(t.Context(), created.ID, ban.UnbanRequest{
		Admin: player.ByID(admin.ID), Reason: "twice",
	})
	require.ErrorIs(t, errAgain, domain.ErrConflict)

	history, errHistory = bans.History(t.Context(), created.ID)
	require.NoError(t, errHistory)
	require.Len(t, history, 2)
}

func TestCreateValidation(t *testing.T) {
	fixture.Require(t)
	t.Parallel()

	var (
		bans   = newBans()
		admin  = fixture.CreateTestPlayer(t.Context())
		target = fixture.CreateTestPlayer(t.Context())
	)

	_, errDuration := bans.Create(t.Context(), ban.CreateRequest{
		Player: player.ByID(target.ID), Admin: player.ByID(admin.ID),
	})
	require.ErrorIs(t, errDuration, domain.ErrValidation)

	_, errTarget := bans.Create(t.Context(), ban.CreateRequest{
		Player: player.ByID(target.ID), Admin: player.ByID(admin.ID), DurationDays: 1,
		Targets: []ban.Target{{Type: "SERVER", Target: "x"}},
	})
	require.ErrorIs(t, errTarget, ban.ErrInvalidTarget)

	_, errPlayer := bans.Create(t.Context(), ban.CreateRequest{
		Player: player.ByCkey(tests.RandCkey()), Admin: player.ByID(admin.ID), DurationDays: 1,
	})
	require.ErrorIs(t, errPlayer, domain.ErrNotFound)
}

func TestUpdateHistory(t *testing.T) {
	fixture.Require(t)
	t.Parallel()

	var (
		bans   = newBans()
		admin  = fixture.CreateTestPlayer(t.Context())
		target = fixture.CreateTestPlayer(t.Context())
	)

	created, errCreate := bans.Create(t.Context(), ban.CreateRequest{
		Player: player.ByID(target.ID), Admin: player.ByID(admin.ID), DurationDays: 7, Reason: ptr("spam"),
	})
	require.NoError(t, errCreate)
	require.Empty(t, created.Targets)

	updated, errUpdate := bans.Update(t.Context(), created.ID, ban.UpdateRequest{
		Admin:  player.ByID(admin.ID),
		Reason: ptr("spam and slurs"),
	})
	require.NoError(t, errUpdate)
	require.Equal(t, "spam and slurs", *updated.Reason)
	require.Equal(t, created.ExpirationTime, updated.ExpirationTime)

	expiration := created.IssueTime.Add(domain.Days(30))
	updated, errUpdate = bans.Update(t.Context(), created.ID, ban.UpdateRequest{
		Admin:          player.ByID(admin.ID),
		ExpirationTime: &expiration,
		Targets:        &[]ban.Target{{Type: ban.TargetJob, Target: "captain"}, {Type: ban.TargetGame, Target: "ss13"}},
	})
	require.NoError(t, errUpdate)
	require.Equal(t, "spam and slurs", *updated.Reason)
	require.True(t, expiration.Equal(updated.ExpirationTime))
	require.Len(t, updated.Targets, 2)

	history, errHistory := bans.History(t.Context(), created.ID)
	require.NoError(t, errHistory)
	require.Len(t, history, 3)
	require.Equal(t, ban.ActionUpdate, history[1].Action)
	require.JSONEq(t, `{"reason":"spam and slurs"}`, *history[1].Details)
	require.Contains(t, *history[2].Details, "captain")

	_, errEmpty := bans.Update(t.Context(), created.ID, ban.UpdateRequest{Admin: player.ByID(admin.ID)})
	require.ErrorIs(t, errEmpty, domain.ErrValidation)

	_, errMissing := bans.Update(t.Context(), 999999999, ban.UpdateRequest{
		Admin: player.ByID(admin.ID), Reason: ptr("x"),
	})
	require.ErrorIs(t, errMissing, domain.ErrNotFound)

	_, errAdmin := bans.Update(t.Context(), created.ID, ban.UpdateRequest{
		Admin: player.ByCkey(tests.RandCkey()), Reason: ptr("x"),
	})
	require.ErrorIs(t, errAdmin, domain.ErrNotFound)

	history, errHistory = bans.History(t.Context(), created.ID)
	require.NoError(t, errHistory)
	require.Len(t, history, 3)
}

func TestUpdateRollsBackOnIntegrityViolation(t *testing.T) {
	fixture.Require(t)
	t.Parallel()

	var (
		bans   = newBans()
		admin  = fixture.CreateTestPlayer(t.Context())
		target = fixture.CreateTestPlayer(t.Context())
	)

	created, errCreate := bans.Create(t.Context(), ban.CreateRequest{
		Player: player.ByID(target.ID), Admin: player.ByID(admin.ID), DurationDays: 3, Reason: ptr("test"),
		Targets: []ban.Target{{Type: ban.TargetGame, Target: "ss13"}},
	})
	require.NoError(t, errCreate)

	_, errUpdate := bans.Update(t.Context(), created.ID, ban.UpdateRequest{
		Admin:   player.ByID(admin.ID),
		Reason:  ptr("changed"),
		Targets: &[]ban.Target{{Type: ban.TargetJob, Target: "captain"}, {Type: ban.TargetJob, Target: "warden"}},
	})
	require.ErrorIs(t, errUpdate, domain.ErrIntegrity)

	unchanged, errGet := bans.Get(t.Context(), created.ID)
	require.NoError(t, errGet)
	require.Equal(t, "test", *unchanged.Reason)
	require.Equal(t, []ban.Target{{Type: ban.TargetGame, Target: "ss13"}}, unchanged.Targets)

	history, errHistory := bans.History(t.Context(), created.ID)
	require.NoError(t, errHistory)
	require.Len(t, history, 1)
}

func TestQuery(t *testing.T) {
	fixture.Require(t)
	t.Parallel()

	var (
		bans   = newBans()
		admin  = fixture.CreateTestPlayer(t.Context())
		target = fixture.CreateTestPlayer(t.Context())
	)

	first, errFirst := bans.Create(t.Context(), ban.CreateRequest{
		Player: player.ByID(target.ID), Admin: player.ByID(admin.ID), DurationDays: 1,
		Targets: []ban.Target{{Type: ban.TargetJob, Target: "security"}},
	})
	require.NoError(t, errFirst)

	second, errSecond := bans.Create(t.Context(), ban.CreateRequest{
		Player: player.ByID(target.ID), Admin: player.ByID(admin.ID), DurationDays: 2,
	})
	require.NoError(t, errSecond)

	_, errUnban := bans.Unban(t.Context(), second.ID, ban.UnbanRequest{Admin: player.ByID(admin.ID), Reason: "mistake"})
	require.NoError(t, errUnban)

	active, count, errQuery := bans.Query(t.Context(), ban.Query{Ckey: *target.Ckey})
	require.NoError(t, errQuery)
	require.Equal(t, int64(1), count)
	require.Equal(t, first.ID, active[0].ID)
	require.Equal(t, []ban.Target{{Type: ban.TargetJob, Target: "security"}}, active[0].Targets)

	all, count, errAll := bans.Query(t.Context(), ban.Query{AdminDiscordID: *admin.DiscordID, IncludeInactive: true})
	require.NoError(t, errAll)
	require.Equal(t, int64(2), count)
	require.Len(t, all, 2)
	require.Equal(t, domain.Invalidated, all[1].State)
}
