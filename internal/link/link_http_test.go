package link_test

import (
	"net/http"
	"testing"

	"github.com/furfur/central/internal/httphelper"
	"github.com/furfur/central/internal/link"
	"github.com/furfur/central/internal/player"
	"github.com/furfur/central/internal/tests"
	"github.com/stretchr/testify/require"
)

func TestLinkHTTP(t *testing.T) {
	fixture.Require(t)
	t.Parallel()

	var (
		discordID = tests.RandDiscordID()
		ckey      = tests.RandCkey()
		router    = fixture.CreateRouter()
	)

	link.NewLinkHandler(router, tests.StaticAuthenticator{}, newLinks(fakeProvider{discordID: discordID}, &recordingPublisher{}),
		httphelper.NewIPRateLimiter(1000, 1000))

	var token link.Token
	tests.EndpointReceiver(t, router, http.MethodPost, "/v1/link/token?ckey="+ckey, nil, http.StatusOK, "", &token)
	require.Equal(t, ckey, token.Ckey)

	tests.Endpoint(t, router, http.MethodPost, "/v1/link/token?ckey=Not%20Canonical", nil, http.StatusBadRequest, "")
	tests.Endpoint(t, router, http.MethodPost, "/v1/link/token", nil, http.StatusBadRequest, "")

	resp := tests.Endpoint(t, router, http.MethodGet, "/v1/link/login?token="+token.Token, nil, http.StatusTemporaryRedirect, "")
	require.Contains(t, resp.Header().Get("Location"), token.Token)

	tests.Endpoint(t, router, http.MethodGet, "/v1/link/login?token=missing", nil, http.StatusNotFound, "")
	tests.Endpoint(t, router, http.MethodGet, "/v1/link/callback?state="+token.Token, nil, http.StatusBadRequest, "")

	var linked player.Player
	tests.EndpointReceiver(t, router, http.MethodGet, "/v1/link/callback?code=abc&state="+token.Token, nil, http.StatusOK, "", &linked)
	require.Equal(t, ckey, *linked.Ckey)
	require.Equal(t, discordID, *linked.DiscordID)
}

func TestLinkHTTPRateLimited(t *testing.T) {
	fixture.Require(t)
	t.Parallel()

	router := fixture.CreateRouter()
	link.NewLinkHandler(router, tests.StaticAuthenticator{}, newLinks(fakeProvider{}, &recordingPublisher{}),
		httphelper.NewIPRateLimiter(0.001, 1))

	tests.Endpoint(t, router, http.MethodGet, "/v1/link/login?token=missing", nil, http.StatusNotFound, "")
	tests.Endpoint(t, router, http.MethodGet, "/v1/link/login?token=missing", nil, http.StatusTooManyRequests, "")
}
