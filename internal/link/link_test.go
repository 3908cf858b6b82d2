package link_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/furfur/central/internal/domain"
	"github.com/furfur/central/internal/link"
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

var errPublish = errors.New("broker down")

type fakeProvider struct {
	discordID string
	err       error
}

func (f fakeProvider) AuthURL(state string) string {
	return "https://discord.example/oauth2/authorize?state=" + state
}

func (f fakeProvider) Identify(_ context.Context, _ string) (*discordgo.User, error) {
	if f.err != nil {
		return nil, f.err
	}

	return &discordgo.User{ID: f.discordID, Username: "fennec"}, nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	channels []string
	payloads []any
	err      error
}

func (r *recordingPublisher) Publish(_ context.Context, channel string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}

	r.channels = append(r.channels, channel)
	r.payloads = append(r.payloads, payload)

	return nil
}

func (r *recordingPublisher) Close() error {
	return nil
}

func newLinks(provider link.IdentityProvider, publisher *recordingPublisher) link.Links {
	players := player.NewPlayers(player.NewRepository(fixture.Database), nil)

	return link.NewLinks(link.NewRepository(fixture.Database), players, provider, publisher, fixture.Config.Link,
		fixture.Config.Notification.Channel)
}

func expire(t *testing.T, ckey string) {
	t.Helper()

	require.NoError(t, fixture.Database.Exec(t.Context(),
		"UPDATE ckey_link_token SET expiration_time = $1 WHERE ckey = $2", time.Now().Add(-time.Minute), ckey))
}

func TestIssueToken(t *testing.T) {
	fixture.Require(t)
	t.Parallel()

	var (
		links = newLinks(fakeProvider{}, &recordingPublisher{})
		ckey  = tests.RandCkey()
	)

	first, errFirst := links.IssueToken(t.Context(), ckey)
	require.NoError(t, errFirst)
	require.NotEmpty(t, first.Token)
	require.Equal(t, ckey, first.Ckey)
	require.WithinDuration(t, time.Now().Add(fixture.Config.Link.TokenTTL), first.ExpirationTime, time.Minute)

	second, errSecond := links.IssueToken(t.Context(), ckey)
	require.NoError(t, errSecond)
	require.Equal(t, first.Token, second.Token)

	expire(t, ckey)

	third, errThird := links.IssueToken(t.Context(), ckey)
	require.NoError(t, errThird)
	require.NotEqual(t, first.Token, third.Token)

	_, errEmpty := links.IssueToken(t.Context(), "")
	require.ErrorIs(t, errEmpty, domain.ErrValidation)
}

func TestIssueTokenConcurrent(t *testing.T) {
	fixture.Require(t)
	t.Parallel()

	var (
		links  = newLinks(fakeProvider{}, &recordingPublisher{})
		ckey   = tests.RandCkey()
		wg     sync.WaitGroup
		mu     sync.Mutex
		tokens = map[string]bool{}
	)

	for range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			token, errToken := links.IssueToken(context.Background(), ckey)
			if errToken != nil {
				return
			}

			mu.Lock()
			tokens[token.Token] = true
			mu.Unlock()
		}()
	}

	wg.Wait()
	require.Len(t, tokens, 1)
}

func TestCallback(t *testing.T) {
	fixture.Require(t)
	t.Parallel()

	var (
		players   = player.NewPlayers(player.NewRepository(fixture.Database), nil)
		discordID = tests.RandDiscordID()
		ckey      = tests.RandCkey()
		publisher = &recordingPublisher{}
		links     = newLinks(fakeProvider{discordID: discordID}, publisher)
	)

	stub, errStub := players.GetOrCreateByDiscordID(t.Context(), discordID)
	require.NoError(t, errStub)
	require.Nil(t, stub.Ckey)

	token, errToken := links.IssueToken(t.Context(), ckey)
	require.NoError(t, errToken)

	loginURL, errURL := links.LoginURL(t.Context(), token.Token)
	require.NoError(t, errURL)
	require.Contains(t, loginURL, token.Token)

	linked, errLink := links.Callback(t.Context(), "code", token.Token)
	require.NoError(t, errLink)
	require.Equal(t, stub.ID, linked.ID)
	require.Equal(t, ckey, *linked.Ckey)
	require.Equal(t, discordID, *linked.DiscordID)

	require.Equal(t, []string{fixture.Config.Notification.Channel}, publisher.channels)
	require.Equal(t, linked, publisher.payloads[0])

	_, errConsumed := links.LoginURL(t.Context(), token.Token)
	require.ErrorIs(t, errConsumed, domain.ErrNotFound)
}

func TestCallbackAlreadyLinked(t *testing.T) {
	fixture.Require(t)
	t.Parallel()

	var (
		existing  = fixture.CreateTestPlayer(t.Context())
		publisher = &recordingPublisher{}
		links     = newLinks(fakeProvider{discordID: *existing.DiscordID}, publisher)
		ckey      = tests.RandCkey()
	)

	token, errToken := links.IssueToken(t.Context(), ckey)
	require.NoError(t, errToken)

	_, errLink := links.Callback(t.Context(), "code", token.Token)
	require.ErrorIs(t, errLink, domain.ErrAlreadyLinked)
	require.Empty(t, publisher.payloads)

	unchanged, errGet := player.NewPlayers(player.NewRepository(fixture.Database), nil).ByID(t.Context(), existing.ID)
	require.NoError(t, errGet)
	require.Equal(t, *existing.Ckey, *unchanged.Ckey)

	_, errMissing := player.NewPlayers(player.NewRepository(fixture.Database), nil).ByCkey(t.Context(), ckey)
	require.ErrorIs(t, errMissing, domain.ErrNotFound)

	// The token survives a rejected link.
	_, errURL := links.LoginURL(t.Context(), token.Token)
	require.NoError(t, errURL)
}

func TestCallbackFailures(t *testing.T) {
	fixture.Require(t)
	t.Parallel()

	ckey := tests.RandCkey()

	unauthorized := newLinks(fakeProvider{err: domain.ErrUnauthorized}, &recordingPublisher{})
	token, errToken := unauthorized.IssueToken(t.Context(), ckey)
	require.NoError(t, errToken)

	_, errLink := unauthorized.Callback(t.Context(), "code", token.Token)
	require.ErrorIs(t, errLink, domain.ErrUnauthorized)

	_, errState := unauthorized.Callback(t.Context(), "code", "unknown-state")
	require.ErrorIs(t, errState, domain.ErrNotFound)

	_, errCode := unauthorized.Callback(t.Context(), "", token.Token)
	require.ErrorIs(t, errCode, domain.ErrValidation)

	expire(t, ckey)

	_, errExpired := unauthorized.Callback(t.Context(), "code", token.Token)
	require.ErrorIs(t, errExpired, domain.ErrNotFound)
}

func TestCallbackPublishFailure(t *testing.T) {
	fixture.Require(t)
	t.Parallel()

	var (
		discordID = tests.RandDiscordID()
		links     = newLinks(fakeProvider{discordID: discordID}, &recordingPublisher{err: errPublish})
	)

	token, errToken := links.IssueToken(t.Context(), tests.RandCkey())
	require.NoError(t, errToken)

	linked, errLink := links.Callback(t.Context(), "code", token.Token)
	require.NoError(t, errLink)
	require.Equal(t, discordID, *linked.DiscordID)
}
