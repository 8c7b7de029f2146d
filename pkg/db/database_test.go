package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenRejectsEmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), "")
	require.Error(t, err)
}

func TestOpenSQLiteMemory(t *testing.T) {
	db, err := Open(context.Background(), "sqlite::memory:")
	require.NoError(t, err)
	require.Equal(t, "sqlite", db.Dialector.Name())
	require.NoError(t, Ping(context.Background(), db))
}

func TestDialectorSelection(t *testing.T) {
	_, isSQLite := dialector("postgres://u:p@localhost:5432/shop?sslmode=disable")
	require.False(t, isSQLite)

	_, isSQLite = dialector("sqlite:shop.db")
	require.True(t, isSQLite)
}
