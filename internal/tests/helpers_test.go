package tests_test

import (
	"testing"

	"github.com/furfur/central/internal/httphelper"
	"github.com/furfur/central/internal/tests"
	"github.com/stretchr/testify/require"
)

func TestRandIdentifiers(t *testing.T) {
	for range 50 {
		ckey := tests.RandCkey()
		require.True(t, httphelper.ValidCkey(ckey), ckey)

		discordID := tests.RandDiscordID()
		require.True(t, httphelper.ValidDiscordID(discordID), discordID)
		require.Len(t, discordID, 18)
	}

	require.NotEqual(t, tests.RandCkey(), tests.RandCkey())
}
