package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	setupCLI()

	for _, path := range [][]string{
		{"serve"},
		{"migrate"},
		{"token", "create"},
		{"token", "list"},
		{"token", "delete"},
	} {
		found, _, errFind := rootCmd.Find(path)
		require.NoError(t, errFind)
		require.Equal(t, path[len(path)-1], found.Name())
	}

	require.Equal(t, BuildVersion, rootCmd.Version)
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))

	migrate, _, errFind := rootCmd.Find([]string{"migrate"})
	require.NoError(t, errFind)
	require.NotNil(t, migrate.Flags().Lookup("down"))
	require.NotNil(t, migrate.Flags().Lookup("one"))
}

func TestVersion(t *testing.T) {
	require.Equal(t, BuildVersion, Version().BuildVersion)
}
