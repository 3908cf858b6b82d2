package donation_test

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/furfur/central/internal/donation"
	"github.com/furfur/central/internal/player"
	"github.com/furfur/central/internal/tests"
	"github.com/stretchr/testify/require"
)

type donationResults struct {
	Count int64               `json:"count"`
	Data  []donation.Donation `json:"data"`
}

func TestDonationHTTP(t *testing.T) {
	fixture.Require(t)
	t.Parallel()

	router := fixture.CreateRouter()
	donations, _ := newDonations(fixture.Config.Donation)
	donation.NewDonationHandler(router, tests.StaticAuthenticator{}, donations)

	discordID := tests.RandDiscordID()

	var created donation.Created
	tests.EndpointReceiver(t, router, http.MethodPost, "/v1/donations", donation.CreateRequest{
		Player: player.ByDiscordID(discordID), Tier: 1,
	}, http.StatusCreated, "", &created)
	require.True(t, created.Donation.Valid)

	path := "/v1/donations/" + strconv.FormatInt(created.Donation.ID, 10)

	var patched donation.Donation
	tests.EndpointReceiver(t, router, http.MethodPatch, path, donation.Patch{Valid: ptr(false)}, http.StatusOK, "", &patched)
	require.False(t, patched.Valid)

	var results donationResults
	tests.EndpointReceiver(t, router, http.MethodGet, "/v1/donations", donation.Query{DiscordID: discordID}, http.StatusOK, "", &results)
	require.Equal(t, int64(0), results.Count)

	tests.EndpointReceiver(t, router, http.MethodGet, "/v1/donations", donation.Query{
		DiscordID: discordID, IncludeInactive: true,
	}, http.StatusOK, "", &results)
	require.Equal(t, int64(1), results.Count)

	tests.Endpoint(t, router, http.MethodGet, "/v1/donations/999999999", nil, http.StatusNotFound, "")
	tests.Endpoint(t, router, http.MethodPost, "/v1/donations", donation.CreateRequest{
		Player: player.ByDiscordID(discordID), Tier: -5,
	}, http.StatusBadRequest, "")
}
