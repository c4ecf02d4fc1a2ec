package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/logger"
)

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "docsync", rootCmd.Use)
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("verbose"))
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	names := make([]string, 0)
	for _, cmd := range rootCmd.Commands() {
		names = append(names, cmd.Name())
	}

	for _, want := range []string{"watch", "health", "config", "document", "login", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	path := setupTest(t, newFakeSession(), nil)

	_, err := run(context.Background(), path, "frobnicate")

	assert.Error(t, err)
}

func TestRootCmd_VerboseFlagEnablesLogger(t *testing.T) {
	path := setupTest(t, newFakeSession(), nil)
	defer logger.SetVerbose(false)

	_, err := run(context.Background(), path, "version", "--verbose")

	require.NoError(t, err)
	assert.True(t, logger.IsVerbose())
}

func TestLoadSettings_InvalidConfig(t *testing.T) {
	path := setupTest(t, newFakeSession(), nil)
	writeTestConfig(t, path, "[server]\nurl = \"http://not-a-socket\"\n")
	configPath = path

	store, _, err := loadSettings()

	require.Error(t, err)
	assert.NotNil(t, store, "store is returned so callers can show its path")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
