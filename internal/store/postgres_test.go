package store

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carpnav/internal/report"
)

func TestSplitStatements(t *testing.T) {
	got := splitStatements("CREATE TABLE a (x int);\n\n  CREATE INDEX i ON a (x) ;\n")
	assert.Equal(t, []string{"CREATE TABLE a (x int)", "CREATE INDEX i ON a (x)"}, got)
	assert.Empty(t, splitStatements(" ; \n"))
}

func TestJSONOrNil(t *testing.T) {
	v, err := jsonOrNil[report.Report](nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = jsonOrNil(&report.Report{Vertices: 3})
	require.NoError(t, err)
	assert.Contains(t, v, `"vertices":3`)
}

func TestNullIfEmpty(t *testing.T) {
	assert.Nil(t, nullIfEmpty(""))
	assert.Equal(t, "x", nullIfEmpty("x"))
}

func TestEmbeddedMigrations(t *testing.T) {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)
	body, err := fs.ReadFile(migrations, names[0])
	require.NoError(t, err)
	assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS runs")
}
