package postgres

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/alex-rublevsky/rublevsky-studio/pkg/database"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }
func int64Ptr(n int64) *int64 { return &n }
func boolPtr(b bool) *bool    { return &b }

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func uniqueErr(constraint string) error {
	return &pgconn.PgError{Code: sqlStateUniqueViolation, ConstraintName: constraint}
}

func fkErr(constraint string) error {
	return &pgconn.PgError{Code: sqlStateForeignKeyViolation, ConstraintName: constraint}
}
