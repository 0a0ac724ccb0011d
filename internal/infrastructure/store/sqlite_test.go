package store

import (
	"context"
	"path/filepath"
	"testing"

	"bar-inventory-api/internal/infrastructure/config"
)

func newTestBarStore(t *testing.T) *BarStore {
	t.Helper()

	db, err := OpenSQLite(&config.StoreConfig{
		Path: filepath.Join(t.TempDir(), "bar.db"),
	})
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return NewBarStore(db)
}

func TestBarStoreUpsertAndList(t *testing.T) {
	s := newTestBarStore(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, "account-1", "gin", "Gin"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Upsert(ctx, "account-1", "lime-juice", "Lime Juice"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	// 別的身份的資料不可互相滲漏
	if err := s.Upsert(ctx, "account-2", "rum", "Rum"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	records, err := s.List(ctx, "account-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].IngredientID != "gin" || records[1].IngredientID != "lime-juice" {
		t.Errorf("records = %+v, want gin then lime-juice", records)
	}
	if records[0].UpdatedAt.IsZero() {
		t.Error("UpdatedAt not populated")
	}
}

func TestBarStoreUpsertIsIdempotent(t *testing.T) {
	s := newTestBarStore(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, "account-1", "gin", "Gin"); err != nil {
		t.Fatalf("first Upsert: %v", err)
	}
	// 重複寫入同一筆是成功而非衝突，顯示名稱更新
	if err := s.Upsert(ctx, "account-1", "gin", "London Dry Gin"); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	records, err := s.List(ctx, "account-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].DisplayName != "London Dry Gin" {
		t.Errorf("DisplayName = %q, want updated name", records[0].DisplayName)
	}
}

func TestBarStoreDelete(t *testing.T) {
	s := newTestBarStore(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, "account-1", "gin", "Gin"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Delete(ctx, "account-1", "gin"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	// 刪除不存在的記錄不是錯誤
	if err := s.Delete(ctx, "account-1", "gin"); err != nil {
		t.Fatalf("repeated Delete: %v", err)
	}

	records, err := s.List(ctx, "account-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
}

func TestBarStoreDeleteAll(t *testing.T) {
	s := newTestBarStore(t)
	ctx := context.Background()

	for _, id := range []string{"gin", "rum", "lime-juice"} {
		if err := s.Upsert(ctx, "account-1", id, ""); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	if err := s.Upsert(ctx, "account-2", "gin", ""); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := s.DeleteAll(ctx, "account-1"); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}

	records, err := s.List(ctx, "account-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("account-1 still has %d records", len(records))
	}

	others, err := s.List(ctx, "account-2")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(others) != 1 {
		t.Errorf("account-2 lost records: got %d, want 1", len(others))
	}
}
