package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"tradecore/internal/models"
)

// ============================================================
// LedgerRepository Tests
// ============================================================

func TestLedgerRepositoryInsert(t *testing.T) {
	tests := []struct {
		name        string
		entry       *models.LedgerEntry
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError bool
	}{
		{
			name: "success",
			entry: &models.LedgerEntry{
				ID:            "le-1",
				UserID:        "u1",
				Type:          models.LedgerTypeDeposit,
				Amount:        1000,
				BalanceBefore: 0,
				BalanceAfter:  1000,
				Actor:         "u1",
				CreatedAt:     time.Now(),
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO ledger_entries`).
					WithArgs("le-1", "u1", models.LedgerTypeDeposit, 1000.0, 0.0, 1000.0,
						"", "u1", "", sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "duplicate delivery is a no-op",
			entry: &models.LedgerEntry{
				ID:     "le-1",
				UserID: "u1",
				Type:   models.LedgerTypeDeposit,
				Amount: 1000,
				Actor:  "u1",
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				// ON CONFLICT DO NOTHING: затронуто 0 строк, ошибки нет
				mock.ExpectExec(`INSERT INTO ledger_entries`).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
		},
		{
			name: "database error",
			entry: &models.LedgerEntry{
				ID:     "le-2",
				UserID: "u1",
				Type:   models.LedgerTypeWithdrawal,
				Amount: -100,
				Actor:  "u1",
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO ledger_entries`).
					WillReturnError(errors.New("connection reset"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewLedgerRepository(db)
			err = repo.Insert(context.Background(), tt.entry)

			if tt.expectError && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLedgerRepositoryListByUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	columns := []string{
		"id", "user_id", "type", "amount", "balance_before", "balance_after",
		"reference_id", "actor", "reason", "created_at",
	}
	mock.ExpectQuery(`SELECT (.+) FROM ledger_entries`).
		WithArgs("u1", 50, 0).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("le-2", "u1", models.LedgerTypeTradeClose, 210.0, 800.0, 1010.0, "pos-1", "u1", "close manual: BTCUSDT", time.Now()).
			AddRow("le-1", "u1", models.LedgerTypeTradeOpen, -200.0, 1000.0, 800.0, "pos-1", "u1", "margin locked: BTCUSDT", time.Now()))

	repo := NewLedgerRepository(db)
	entries, err := repo.ListByUser(context.Background(), "u1", 50, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	// Инвариант каждой записи: balance_after - balance_before == amount
	for _, entry := range entries {
		if entry.BalanceAfter-entry.BalanceBefore != entry.Amount {
			t.Errorf("entry %s: after-before = %v, amount = %v",
				entry.ID, entry.BalanceAfter-entry.BalanceBefore, entry.Amount)
		}
	}
}

func TestLedgerRepositorySumByUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\)`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(1010.0))

	repo := NewLedgerRepository(db)
	sum, err := repo.SumByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum != 1010 {
		t.Errorf("sum = %v, want 1010", sum)
	}
}
