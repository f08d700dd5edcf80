//go:build postgres_integration

package store

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carpnav/internal/model"
	"carpnav/internal/pathscan"
)

func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	p, err := NewPostgres(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	require.NoError(t, p.Ping(t.Context()))
	require.NoError(t, p.Migrate(t.Context()))
	require.NoError(t, p.MigrateDir("migrations"), "re-applying must be a no-op")

	r, err := p.CreateRun(t.Context(), model.Run{
		Instance: "itest", Status: model.StatusSolved, Outcome: "ok",
		Solution: &pathscan.Solution{Depot: 1, Capacity: 10, Routes: []pathscan.Route{{Vertices: []int{1, 2, 1}, Cost: 4}}},
	})
	require.NoError(t, err)

	got, err := p.GetRun(t.Context(), r.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Solution)
	assert.Equal(t, []int{1, 2, 1}, got.Solution.Routes[0].Vertices)
	assert.Nil(t, got.Report)

	page, _, err := p.ListRuns(t.Context(), "itest", "", 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, r.ID, page[0].ID)
}
