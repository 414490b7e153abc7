//go:build integration

package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.nextspeaker.dev/nextspeaker/roster"
)

func TestMySQLStore(t *testing.T) {
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set, skipping integration test")
	}

	ctx := context.Background()

	s, err := Open(ctx, Config{Backend: BackendMySQL, MySQLDSN: dsn, Namespace: t.Name()})
	require.NoError(t, err)
	defer s.Close()

	ms := s.(*MySQL)
	t.Cleanup(func() {
		for _, table := range []string{ms.candidatesTable(), ms.historyTable(), ms.settingsTable()} {
			ms.db.Exec("DELETE FROM "+table+" WHERE namespace=?", ms.namespace)
		}
	})

	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	r := roster.Roster{
		Candidates: []string{"ann", "bob", "cat"},
		History:    []string{"cat", "ann"},
		Halflife:   3,
	}
	require.NoError(t, s.Save(ctx, r))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, r, got)

	require.NoError(t, Record(ctx, s, "bob"))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "ann", "bob"}, got.History)
}
