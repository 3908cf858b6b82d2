package whitelist_test

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/furfur/central/internal/player"
	"github.com/furfur/central/internal/tests"
	"github.com/furfur/central/internal/whitelist"
	"github.com/stretchr/testify/require"
)

type grantResults struct {
	Count int64             `json:"count"`
	Data  []whitelist.Grant `json:"data"`
}

func TestWhitelistHTTP(t *testing.T) {
	fixture.Require(t)
	t.Parallel()

	router := fixture.CreateRouter()
	whitelist.NewWhitelistHandler(router, tests.StaticAuthenticator{}, newWhitelists())

	var (
		admin      = fixture.CreateTestPlayer(t.Context())
		target     = fixture.CreateTestPlayer(t.Context())
		serverType = "srv" + tests.RandCkey()[:8]
		grantReq   = whitelist.GrantRequest{
			Player:     player.ByCkey(*target.Ckey),
			Admin:      player.ByDiscordID(*admin.DiscordID),
			ServerType: serverType,
		}
	)

	var grant whitelist.Grant
	tests.EndpointReceiver(t, router, http.MethodPost, "/v1/whitelists", grantReq, http.StatusCreated, "", &grant)
	require.True(t, grant.Valid)

	var fetched whitelist.Grant
	tests.EndpointReceiver(t, router, http.MethodGet, "/v1/whitelists/"+strconv.FormatInt(grant.ID, 10), nil, http.StatusOK, "", &fetched)
	require.Equal(t, grant.ID, fetched.ID)

	var ckeys []string
	tests.EndpointReceiver(t, router, http.MethodGet, "/v1/whitelists/ckeys?server_type="+serverType, nil, http.StatusOK, "", &ckeys)
	require.Equal(t, []string{*target.Ckey}, ckeys)

	var ban whitelist.Ban
	tests.EndpointReceiver(t, router, http.MethodPost, "/v1/whitelist_bans", whitelist.BanRequest{
		Player: grantReq.Player, Admin: grantReq.Admin, ServerType: serverType,
	}, http.StatusCreated, "", &ban)
	require.True(t, ban.Valid)

	tests.Endpoint(t, router, http.MethodPost, "/v1/whitelists", grantReq, http.StatusConflict, "")
	tests.Endpoint(t, router, http.MethodPost, "/v1/whitelists?ignore_bans=true", grantReq, http.StatusCreated, "")

	var results grantResults
	tests.EndpointReceiver(t, router, http.MethodGet, "/v1/whitelists", whitelist.Query{
		Ckey: *target.Ckey, ServerType: serverType, IncludeInactive: true,
	}, http.StatusOK, "", &results)
	require.Equal(t, int64(2), results.Count)

	valid := false
	tests.Endpoint(t, router, http.MethodPatch, "/v1/whitelist_bans/"+strconv.FormatInt(ban.ID, 10),
		whitelist.BanPatch{GrantPatch: whitelist.GrantPatch{Valid: &valid}}, http.StatusOK, "")

	tests.Endpoint(t, router, http.MethodGet, "/v1/whitelists/999999999", nil, http.StatusNotFound, "")
	tests.Endpoint(t, router, http.MethodPost, "/v1/whitelists?ignore_bans=maybe", grantReq, http.StatusBadRequest, "")
	tests.Endpoint(t, router, http.MethodPost, "/v1/whitelists", whitelist.GrantRequest{
		Player: player.ByCkey(tests.RandCkey()), Admin: grantReq.Admin,
	}, http.StatusNotFound, "")
}

