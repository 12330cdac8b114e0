package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations_Paired(t *testing.T) {
	t.Parallel()
	entries, err := embeddedMigrations.ReadDir("migrations")
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	assert.ElementsMatch(t, []string{
		"000001_create_calculation_runs.up.sql",
		"000001_create_calculation_runs.down.sql",
		"000002_create_fixture_models.up.sql",
		"000002_create_fixture_models.down.sql",
	}, names)
}

func TestMigrator_DownRejectsNonPositiveSteps(t *testing.T) {
	t.Parallel()
	err := NewMigrator("postgres://unused", "").Down(0)
	assert.ErrorContains(t, err, "steps must be positive")
}

func TestMigrator_InvalidSource(t *testing.T) {
	t.Parallel()
	err := NewMigrator("postgres://unused", "nosuchscheme://x").Up()
	assert.Error(t, err)
}
