package whitelist_test

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/furfur/central/internal/domain"
	"github.com/furfur/central/internal/player"
	"github.com/furfur/central/internal/tests"
	"github.com/furfur/central/internal/whitelist"
	"github.com/stretchr/testify/require"
)

var fixture *tests.Fixture //nolint:gochecknoglobals

func TestMain(m *testing.M) {
	fixture = tests.NewFixture()

	code := m.Run()

	fixture.Close()
	os.Exit(code)
}

func newWhitelists() whitelist.Whitelists {
	players := player.NewPlayers(player.NewRepository(fixture.Database), nil)

	return whitelist.NewWhitelists(whitelist.NewRepository(fixture.Database), players, fixture.Config.Whitelist, nil)
}

func ptr[T any](value T) *T {
	return &value
}

func TestGrantAndBanScenario(t *testing.T) {
	fixture.Require(t)
	t.Parallel()

	var (
		whitelists = newWhitelists()
		admin      = fixture.CreateTestPlayer(t.Context())
		target     = fixture.CreateTestPlayer(t.Context())
		playerRef  = player.ByCkey(*target.Ckey)
		adminRef   = player.ByDiscordID(*admin.DiscordID)
	)

	grant, errGrant := whitelists.Grant(t.Context(), whitelist.GrantRequest{
		Player: playerRef, Admin: adminRef, ServerType: "main", DurationDays: 30,
	}, false)
	require.NoError(t, errGrant)
	require.True(t, grant.Valid)
	require.Equal(t, domain.Active, grant.State)
	require.WithinDuration(t, time.Now().Add(domain.Days(30)), grant.ExpirationTime, time.Minute)

	otherCategory, errOther := whitelists.Grant(t.Context(), whitelist.GrantRequest{
		Player: playerRef, Admin: adminRef, ServerType: "trial",
	}, false)
	require.NoError(t, errOther)
	require.WithinDuration(t, time.Now().Add(domain.Days(fixture.Config.Whitelist.GrantDays)), otherCategory.ExpirationTime, time.Minute)

	ban, errBan := whitelists.Ban(t.Context(), whitelist.BanRequest{
		Player: playerRef, Admin: adminRef, ServerType: "main", DurationDays: 14, Reason: ptr("griefing"),
	}, true)
	require.NoError(t, errBan)
	require.True(t, ban.Valid)
	require.Equal(t, "griefing", *ban.Reason)
	require.WithinDuration(t, time.Now().Add(domain.Days(14)), ban.ExpirationTime, time.Minute)

	invalidated, errGet := whitelists.GetGrant(t.Context(), grant.ID)
	require.NoError(t, errGet)
	require.False(t, invalidated.Valid)
	require.Equal(t, domain.Invalidated, invalidated.State)

	// Other categories are untouched.
	untouched, errUntouched := whitelists.GetGrant(t.Context(), otherCategory.ID)
	require.NoError(t, errUntouched)
	require.True(t, untouched.Valid)

	// An active ban blocks new grants in the category.
	_, errBlocked := whitelists.Grant(t.Context(), whitelist.GrantRequest{
		Player: playerRef, Admin: adminRef, ServerType: "main", DurationDays: 30,
	}, false)
	require.ErrorIs(t, errBlocked, domain.ErrBanned)
	require.ErrorIs(t, errBlocked, domain.ErrConflict)

	grants, count, errQuery := whitelists.QueryGrants(t.Context(), whitelist.Query{
		PlayerID: target.ID, ServerType: "main", IncludeInactive: true,
	})
	require.NoError(t, errQuery)
	require.Equal(t, int64(1), count)
	require.Len(t, grants, 1)

	overridden, errOverride := whitelists.Grant(t.Context(), whitelist.GrantRequest{
		Player: playerRef, Admin: adminRef, ServerType: "main", DurationDays: 30,
	}, true)
	require.NoError(t, errOverride)
	require.True(t, overridden.Valid)
}

func TestBanWithoutInvalidation(t *testing.T) {
	fixture.Require(t)
	t.Parallel()

	var (
		whitelists = newWhitelists()
		admin      = fixture.CreateTestPlayer(t.Context())
		target     = fixture.CreateTestPlayer(t.Context())
	)

	grant, errGrant := whitelists.IssueGrant(t.Context(), target.ID, admin.ID, "main", 30, false)
	require.NoError(t, errGrant)

	_, errBan := whitelists.Ban(t.Context(), whitelist.BanRequest{
		Player: player.ByID(target.ID), Admin: player.ByID(admin.ID), ServerType: "main",
	}, false)
	require.NoError(t, errBan)

	stillValid, errGet := whitelists.GetGrant(t.Context(), grant.ID)
	require.NoError(t, errGet)
	require.True(t, stillValid.Valid)

	banned, errBanned := whitelists.IsBanned(t.Context(), target.ID, "main")
	require.NoError(t, errBanned)
	require.True(t, banned)
}

func TestExpiredBanDoesNotBlock(t *testing.T) {
	fixture.Require(t)
	t.Parallel()

	var (
		whitelists = newWhitelists()
		admin      = fixture.CreateTestPlayer(t.Context())
		target     = fixture.CreateTestPlayer(t.Context())
	)

	ban, errBan := whitelists.Ban(t.Context(), whitelist.BanRequest{
		Player: player.ByID(target.ID), Admin: player.ByID(admin.ID), ServerType: "main",
	}, true)
	require.NoError(t, errBan)

	expired, errPatch := whitelists.PatchBan(t.Context(), ban.ID, whitelist.BanPatch{
		GrantPatch: whitelist.GrantPatch{ExpirationTime: ptr(time.Now().Add(-time.Hour))},
	})
	require.NoError(t, errPatch)
	require.Equal(t, domain.Expired, expired.State)

	_, errGrant := whitelists.IssueGrant(t.Context(), target.ID, admin.ID, "main", 30, false)
	require.NoError(t, errGrant)
}

func TestPatchGrant(t *testing.T) {
	fixture.Require(t)
	t.Parallel()

	var (
		whitelists = newWhitelists()
		admin      = fixture.CreateTestPlayer(t.Context())
		target     = fixture.CreateTestPlayer(t.Context())
	)

	grant, errGrant := whitelists.IssueGrant(t.Context(), target.ID, admin.ID, "main", 30, false)
	require.NoError(t, errGrant)

	patched, errPatch := whitelists.PatchGrant(t.Context(), grant.ID, whitelist.GrantPatch{Valid: ptr(false)})
	require.NoError(t, errPatch)
	require.False(t, patched.Valid)
	require.Equal(t, grant.ServerType, patched.ServerType)
	require.True(t, grant.IssueTime.Equal(patched.IssueTime))
	require.True(t, grant.ExpirationTime.Equal(patched.ExpirationTime))
	require.Equal(t, grant.AdminID, patched.AdminID)

	newExpiry := time.Now().Add(domain.Days(90)).UTC().Truncate(time.Microsecond)
	patched, errPatch = whitelists.PatchGrant(t.Context(), grant.ID, whitelist.GrantPatch{ExpirationTime: &newExpiry})
	require.NoError(t, errPatch)
	require.False(t, patched.Valid)
	require.True(t, newExpiry.Equal(patched.ExpirationTime))

	_, errEmpty := whitelists.PatchGrant(t.Context(), grant.ID, whitelist.GrantPatch{ServerType: ptr(" ")})
	require.ErrorIs(t, errEmpty, domain.ErrValidation)

	_, errMissing := whitelists.PatchGrant(t.Context(), 1<<40, whitelist.GrantPatch{Valid: ptr(true)})
	require.ErrorIs(t, errMissing, domain.ErrNotFound)
}

func TestResolutionFailure(t *testing.T) {
	fixture.Require(t)
	t.Parallel()

	whitelists := newWhitelists()
	admin := fixture.CreateTestPlayer(t.Context())

	_, errGrant := whitelists.Grant(t.Context(), whitelist.GrantRequest{
		Player: player.ByCkey(tests.RandCkey()), Admin: player.ByID(admin.ID),
	}, false)
	require.ErrorIs(t, errGrant, domain.ErrNotFound)

	_, errBan := whitelists.Ban(t.Context(), whitelist.BanRequest{
		Player: player.ByID(admin.ID), Admin: player.ByDiscordID(tests.RandDiscordID()),
	}, true)
	require.ErrorIs(t, errBan, domain.ErrNotFound)

	_, errRef := whitelists.Grant(t.Context(), whitelist.GrantRequest{Player: player.Ref{}, Admin: player.ByID(admin.ID)}, false)
	require.ErrorIs(t, errRef, domain.ErrValidation)
}

func TestActiveIdentifiers(t *testing.T) {
	fixture.Require(t)
	t.Parallel()

	var (
		whitelists = newWhitelists()
		admin      = fixture.CreateTestPlayer(t.Context())
		target     = fixture.CreateTestPlayer(t.Context())
		serverType = "srv" + tests.RandCkey()[:8]
	)

	_, errGrant := whitelists.IssueGrant(t.Context(), target.ID, admin.ID, serverType, 30, false)
	require.NoError(t, errGrant)

	ckeys, errCkeys := whitelists.ActiveCkeys(t.Context(), serverType)
	require.NoError(t, errCkeys)
	require.Equal(t, []string{*target.Ckey}, ckeys)

	discordIDs, errIDs := whitelists.ActiveDiscordIDs(t.Context(), serverType)
	require.NoError(t, errIDs)
	require.Equal(t, []string{*target.DiscordID}, discordIDs)
}

func TestConcurrentGrantAndBan(t *testing.T) {
	fixture.Require(t)
	t.Parallel()

	var (
		whitelists = newWhitelists()
		admin      = fixture.CreateTestPlayer(t.Context())
		target     = fixture.CreateTestPlayer(t.Context())
		waitGroup  sync.WaitGroup
	)

	for range 5 {
		waitGroup.Add(2)

		go func() {
			defer waitGroup.Done()

			_, _ = whitelists.IssueGrant(t.Context(), target.ID, admin.ID, "main", 30, false)
		}()

		go func() {
			defer waitGroup.Done()

			_, _ = whitelists.Ban(t.Context(), whitelist.BanRequest{
				Player: player.ByID(target.ID), Admin: player.ByID(admin.ID), ServerType: "main",
			}, true)
		}()
	}

	waitGroup.Wait()

	// Whatever the interleaving, no grant may be left active alongside an active ban.
	active, count, errQuery := whitelists.QueryGrants(t.Context(), whitelist.Query{PlayerID: target.ID, ServerType: "main"})
	require.NoError(t, errQuery)
	require.Zero(t, count)
	require.Empty(t, active)
}
