package seed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reggaepotato22/krugerr-brendt/internal/domain"
)

func TestProperties(t *testing.T) {
	props, err := Properties()
	require.NoError(t, err)
	require.NotEmpty(t, props)

	seen := map[string]bool{}
	for _, p := range props {
		assert.NotEmpty(t, p.ID)
		assert.False(t, seen[p.ID], "duplicate seed id %s", p.ID)
		seen[p.ID] = true

		assert.Equal(t, domain.ProvenanceSeed, p.Provenance)
		assert.False(t, p.IsLocal)
		assert.True(t, p.Status.Valid(), "property %s has status %q", p.ID, p.Status)
		assert.NotEmpty(t, p.Title)
		assert.NotEmpty(t, p.Price)
	}
}

func TestProjects(t *testing.T) {
	projects, err := Projects()
	require.NoError(t, err)
	require.NotEmpty(t, projects)

	for _, p := range projects {
		assert.Equal(t, domain.ProvenanceSeed, p.Provenance)
		assert.True(t, p.Status.Valid(), "project %s has status %q", p.ID, p.Status)
	}
}

func TestPropertiesReturnsFreshCopies(t *testing.T) {
	a, err := Properties()
	require.NoError(t, err)
	a[0].Title = "changed"

	b, err := Properties()
	require.NoError(t, err)
	assert.NotEqual(t, "changed", b[0].Title)
}
