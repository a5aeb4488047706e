package sqlstore

import (
	"os"
	"strings"
	"testing"

	"github.com/maruel/markdb/internal/storage"
	"github.com/maruel/markdb/internal/storage/storagetest"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *Store {
	require := require.New(t)
	name := strings.ReplaceAll(t.Name(), "/", "_")
	s, err := Open(t.Context(), "sqlite", "file:"+name+"?mode=memory&cache=shared")
	require.NoError(err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestStore_SQLite(t *testing.T) {
	storagetest.Run(t, openSQLite(t))
}

func TestStore_MySQL(t *testing.T) {
	dsn := os.Getenv("MARKDB_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("MARKDB_TEST_MYSQL_DSN not set")
	}
	s, err := Open(t.Context(), "mysql", dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	_, err = storage.Wipe(t.Context(), s)
	require.NoError(t, err)
	storagetest.Run(t, s)
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(t.Context(), "postgres", "x"); err == nil {
		t.Error("Open(postgres) succeeded, want error")
	}
}

func TestAutoMigrate_Idempotent(t *testing.T) {
	s := openSQLite(t)
	require.NoError(t, s.AutoMigrate(t.Context()))
	if got := s.Driver(); got != "sqlite" {
		t.Errorf("Driver() = %q, want %q", got, "sqlite")
	}
}
