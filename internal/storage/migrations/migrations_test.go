package migrations

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatements(t *testing.T) {
	sql := `-- header comment
CREATE TABLE a (x UInt8) ENGINE = Memory;

-- second; with a semicolon
CREATE TABLE b (y String DEFAULT 'a;b') ENGINE = Memory; -- trailing
INSERT INTO b VALUES ('it''s;fine')`

	stmts := Statements(sql)
	require.Len(t, stmts, 3)
	assert.True(t, strings.HasPrefix(stmts[0], "CREATE TABLE a"))
	assert.Contains(t, stmts[1], "'a;b'")
	assert.Equal(t, "INSERT INTO b VALUES ('it''s;fine')", stmts[2])
}

func TestStatements_Empty(t *testing.T) {
	assert.Empty(t, Statements("-- only a comment\n;\n  "))
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := DatabaseFromDSN("clickhouse://localhost:9000/etf")
	require.NoError(t, err)
	assert.Equal(t, "etf", db)

	_, err = DatabaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)

	_, err = DatabaseFromDSN("clickhouse://localhost:9000/etf;drop")
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	fsys := fstest.MapFS{
		"pg/002_more.sql":   {Data: []byte("SELECT 2")},
		"pg/001_init.sql":   {Data: []byte("SELECT 1")},
		"pg/README.md":      {Data: []byte("ignored")},
		"bad/x_init.sql":    {Data: []byte("SELECT 1")},
		"dup/001_a.sql":     {Data: []byte("SELECT 1")},
		"dup/001_b.sql":     {Data: []byte("SELECT 1")},
		"nosep/001init.sql": {Data: []byte("SELECT 1")},
	}

	migs, err := load(fsys, "pg")
	require.NoError(t, err)
	require.Len(t, migs, 2)
	assert.Equal(t, 1, migs[0].Version)
	assert.Equal(t, "001_init.sql", migs[0].Name)
	assert.Equal(t, "SELECT 2", migs[1].SQL)

	for _, dir := range []string{"bad", "dup", "nosep"} {
		_, err := load(fsys, dir)
		assert.Error(t, err, dir)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	pg, err := Postgres()
	require.NoError(t, err)
	require.NotEmpty(t, pg)
	assert.Contains(t, pg[0].SQL, "simulation_runs")
	assert.Contains(t, pg[0].SQL, "run_trades")

	ch, err := ClickHouse()
	require.NoError(t, err)
	require.NotEmpty(t, ch)
	assert.Len(t, Statements(ch[0].SQL), 2)
}
