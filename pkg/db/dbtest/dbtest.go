// Package dbtest opens throwaway SQLite databases carrying the stockhold schema.
package dbtest

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/stockhold/pkg/db/models"
)

// Models lists every table the services read or write.
func Models() []any {
	return []any{
		&models.Warehouse{},
		&models.InventoryRecord{},
		&models.Reservation{},
		&models.MovementLogEntry{},
		&models.ExternalReservationShadow{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	}
}

// Open returns an isolated in-memory database with the full schema migrated.
// The pool is pinned to one connection so concurrent goroutines serialize on it.
func Open(t testing.TB, name string) *gorm.DB {
	t.Helper()
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	if name == "" {
		name = "stockhold"
	}
	dsn := "file:" + name + "_" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(Models()...); err != nil {
		t.Fatalf("migrate schema: %v", err)
	}
	return conn
}
