package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/stockhold/pkg/config"
	pkgerrors "github.com/angelmondragon/stockhold/pkg/errors"
	"github.com/angelmondragon/stockhold/pkg/logger"
)

type stockRow struct {
	ID  int
	SKU string `gorm:"uniqueIndex"`
}

func openSQLite(t *testing.T, logg *logger.Logger) *Client {
	t.Helper()
	client, err := New(context.Background(), config.DBConfig{
		Driver:       DriverSQLite,
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")),
		MaxOpenConns: 1,
	}, logg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.DB().AutoMigrate(&stockRow{}))
	return client
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{Driver: "oracle", DSN: "x"}, nil)
	require.ErrorContains(t, err, "unsupported database driver")

	_, err = New(context.Background(), config.DBConfig{Driver: DriverSQLite}, nil)
	require.ErrorContains(t, err, "DSN is required")
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	client := openSQLite(t, nil)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&stockRow{SKU: "committed"}).Error
	}))

	boom := errors.New("boom")
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&stockRow{SKU: "rolled-back"}).Error; err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, client.DB().Model(&stockRow{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestPingAndSQLHandle(t *testing.T) {
	client := openSQLite(t, nil)
	require.NoError(t, client.Ping(context.Background()))

	sqlDB, err := client.SQL()
	require.NoError(t, err)
	require.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestIsUniqueViolationMatchesDrivers(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{&pgconn.PgError{Code: "23505", ConstraintName: "ux_reservation_key"}, true},
		{&pgconn.PgError{Code: "23514"}, false},
		{errors.New(`ERROR: duplicate key value violates unique constraint "ux_reservation_key"`), true},
		{errors.New("UNIQUE constraint failed: external_reservation_shadows.reservation_key"), true},
		{errors.New("connection refused"), false},
		{nil, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, IsUniqueViolation(tc.err, ""), "%v", tc.err)
	}
	require.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505", ConstraintName: "ux_reservation_key"}, "ux_reservation_key"))
	require.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23505", ConstraintName: "ux_other"}, "ux_reservation_key"))
}

func TestIsUniqueViolationOnSQLite(t *testing.T) {
	client := openSQLite(t, nil)
	require.NoError(t, client.DB().Create(&stockRow{SKU: "dup"}).Error)
	err := client.DB().Create(&stockRow{SKU: "dup"}).Error
	require.True(t, IsUniqueViolation(err, ""))
}

func TestIsNotFound(t *testing.T) {
	client := openSQLite(t, nil)
	var row stockRow
	require.True(t, IsNotFound(client.DB().First(&row, "sku = ?", "missing").Error))
}

func TestClassifyMapsPostgresStates(t *testing.T) {
	cases := []struct {
		state string
		want  pkgerrors.Code
	}{
		{"40001", pkgerrors.CodeConcurrentModification},
		{"40P01", pkgerrors.CodeConcurrentModification},
		{"23505", pkgerrors.CodeConflict},
		{"23514", pkgerrors.CodeStateConflict},
		{"08006", pkgerrors.CodeDependency},
	}
	for _, tc := range cases {
		raw := fmt.Errorf("update inventory: %w", &pgconn.PgError{Code: tc.state})
		typed := pkgerrors.As(Classify(raw))
		require.NotNil(t, typed, tc.state)
		require.Equal(t, tc.want, typed.Code(), tc.state)
		require.ErrorIs(t, Classify(raw), raw)
	}

	plain := errors.New("syntax error")
	require.Same(t, plain, Classify(plain))
	require.Nil(t, Classify(nil))

	already := pkgerrors.New(pkgerrors.CodeInsufficientStock, "short")
	require.Same(t, already, Classify(already))
}

func TestQueryLoggerReportsSlowAndFailedStatements(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "db-test", Output: &buf})
	ql := newQueryLogger(logg, 10*time.Millisecond)
	ctx := context.Background()
	stmt := func() (string, int64) { return "UPDATE inventory_records SET version = version + 1", 1 }

	ql.Trace(ctx, time.Now().Add(-time.Second), stmt, nil)
	require.Contains(t, buf.String(), "db.slow_query")

	buf.Reset()
	ql.Trace(ctx, time.Now(), stmt, errors.New("relation does not exist"))
	require.Contains(t, buf.String(), "db.query_failed")

	buf.Reset()
	ql.Trace(ctx, time.Now(), stmt, gorm.ErrRecordNotFound)
	require.Empty(t, buf.String())

	buf.Reset()
	ql.LogMode(gormlogger.Silent).Trace(ctx, time.Now().Add(-time.Second), stmt, nil)
	require.Empty(t, buf.String())
}
