package player_test

import (
	"net/http"
	"testing"

	"github.com/furfur/central/internal/player"
	"github.com/furfur/central/internal/tests"
	"github.com/stretchr/testify/require"
)

func TestPlayerHTTP(t *testing.T) {
	fixture.Require(t)
	t.Parallel()

	router := fixture.CreateRouter()
	player.NewPlayerHandler(router, tests.StaticAuthenticator{}, newPlayers())

	ckey, discordID := tests.RandCkey(), tests.RandDiscordID()

	var created player.Player
	tests.EndpointReceiver(t, router, http.MethodPost, "/v1/players",
		player.CreateRequest{Ckey: ckey, DiscordID: discordID}, http.StatusCreated, "", &created)
	require.Positive(t, created.ID)

	tests.Endpoint(t, router, http.MethodPost, "/v1/players",
		player.CreateRequest{Ckey: ckey}, http.StatusConflict, "")
	tests.Endpoint(t, router, http.MethodPost, "/v1/players",
		player.CreateRequest{Ckey: "Not Valid"}, http.StatusBadRequest, "")

	var byCkey player.Player
	tests.EndpointReceiver(t, router, http.MethodGet, "/v1/players/ckey/"+ckey, nil, http.StatusOK, "", &byCkey)
	require.Equal(t, created.ID, byCkey.ID)

	var byDiscord player.Player
	tests.EndpointReceiver(t, router, http.MethodGet, "/v1/players/discord/"+discordID, nil, http.StatusOK, "", &byDiscord)
	require.Equal(t, created.ID, byDiscord.ID)

	tests.Endpoint(t, router, http.MethodGet, "/v1/players/ckey/"+tests.RandCkey(), nil, http.StatusNotFound, "")
	tests.Endpoint(t, router, http.MethodGet, "/v1/players/id/abc", nil, http.StatusBadRequest, "")
}
