package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/promopipe/go-offers-backend/internal/domain"
)

// newRepoDB opens a throwaway SQLite database with the full schema applied.
func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testMessage(hash string) *domain.Message {
	return &domain.Message{
		InstanceID:    "inst-1",
		InstanceName:  "main",
		GroupID:       "123@g.us",
		MessageID:     "wamid-1",
		Caption:       "Notebook X\nPor R$ 2500\nhttps://mercadolivre.com.br/p/MLB123",
		Marketplace:   "mercadolivre",
		LinkScrape:    "https://mercadolivre.com.br/p/MLB123",
		Hash:          hash,
		CorrelationID: "11111111-1111-1111-1111-111111111111",
		Status:        "recebida",
	}
}

func TestInsertMessageDedup_FirstInsert(t *testing.T) {
	db := newRepoDB(t)

	m := testMessage("hash-a")
	inserted, err := InsertMessageDedup(context.Background(), db, m)
	if err != nil {
		t.Fatalf("InsertMessageDedup: %v", err)
	}
	if !inserted {
		t.Fatal("first insert reported duplicate")
	}
	if m.ID == "" {
		t.Error("ID not assigned")
	}

	got, err := GetMessage(context.Background(), db, m.ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if got.Hash != "hash-a" || got.Marketplace != "mercadolivre" {
		t.Errorf("persisted message = %+v", got)
	}
}

func TestInsertMessageDedup_Duplicate(t *testing.T) {
	db := newRepoDB(t)

	first := testMessage("hash-b")
	if _, err := InsertMessageDedup(context.Background(), db, first); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	second := testMessage("hash-b")
	inserted, err := InsertMessageDedup(context.Background(), db, second)
	if err != nil {
		t.Fatalf("duplicate insert errored: %v", err)
	}
	if inserted {
		t.Fatal("duplicate insert reported inserted=true")
	}

	var count int64
	db.Model(&domain.Message{}).Count(&count)
	if count != 1 {
		t.Errorf("rows = %d, want 1", count)
	}
}

func TestUpdateMessageStatus(t *testing.T) {
	db := newRepoDB(t)

	m := testMessage("hash-c")
	if _, err := InsertMessageDedup(context.Background(), db, m); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := UpdateMessageStatus(context.Background(), db, m.ID, "processada"); err != nil {
		t.Fatalf("UpdateMessageStatus: %v", err)
	}
	got, _ := GetMessage(context.Background(), db, m.ID)
	if got.Status != "processada" {
		t.Errorf("status = %q", got.Status)
	}

	if err := UpdateMessageStatus(context.Background(), db, "missing", "x"); err != ErrNotFound {
		t.Errorf("missing id: err = %v, want ErrNotFound", err)
	}
}
