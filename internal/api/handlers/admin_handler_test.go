package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"tradecore/internal/models"
)

// ============ AdminHandler Tests ============

func TestAdminHandler_Credit(t *testing.T) {
	t.Run("credits and audits", func(t *testing.T) {
		accounts := NewMockAccountService()
		accounts.AddAccount("u1", 100)
		handler := NewAdminHandler(accounts, NewMockTradeService())

		body := []byte(`{"admin_id":"admin-1","amount":50,"reason":"compensation"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/accounts/u1/credit", bytes.NewReader(body))
		req = mux.SetURLVars(req, map[string]string{"user_id": "u1"})
		w := httptest.NewRecorder()

		handler.Credit(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}
		if len(accounts.activity) != 1 || accounts.activity[0].Action != models.ActivityActionCredit {
			t.Errorf("audit entry missing: %+v", accounts.activity)
		}
	})

	t.Run("rejects missing admin_id", func(t *testing.T) {
		handler := NewAdminHandler(NewMockAccountService(), NewMockTradeService())

		body := []byte(`{"amount":50,"reason":"x"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/accounts/u1/credit", bytes.NewReader(body))
		req = mux.SetURLVars(req, map[string]string{"user_id": "u1"})
		w := httptest.NewRecorder()

		handler.Credit(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})

	t.Run("rejects empty reason", func(t *testing.T) {
		accounts := NewMockAccountService()
		accounts.AddAccount("u1", 100)
		handler := NewAdminHandler(accounts, NewMockTradeService())

		body := []byte(`{"admin_id":"admin-1","amount":50}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/accounts/u1/credit", bytes.NewReader(body))
		req = mux.SetURLVars(req, map[string]string{"user_id": "u1"})
		w := httptest.NewRecorder()

		handler.Credit(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})
}

func TestAdminHandler_ForceClose(t *testing.T) {
	trades := NewMockTradeService()
	pos := openTestPosition(t, trades, "u1")
	handler := NewAdminHandler(NewMockAccountService(), trades)

	body := []byte(`{"admin_id":"admin-1","reason":"risk limit"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/accounts/u1/positions/"+pos.ID+"/force-close", bytes.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"user_id": "u1", "position_id": pos.ID})
	w := httptest.NewRecorder()

	handler.ForceClose(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var trade models.ClosedTrade
	if err := json.NewDecoder(w.Body).Decode(&trade); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if trade.CloseReason != models.CloseReasonAdmin {
		t.Errorf("close reason = %s, want admin_force_close", trade.CloseReason)
	}
}

func TestAdminHandler_Reconcile(t *testing.T) {
	accounts := NewMockAccountService()
	accounts.AddAccount("u1", 0)
	accounts.Deposit("u1", 300)
	handler := NewAdminHandler(accounts, NewMockTradeService())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/accounts/u1/reconcile", nil)
	req = mux.SetURLVars(req, map[string]string{"user_id": "u1"})
	w := httptest.NewRecorder()

	handler.Reconcile(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp reconcileResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Drift != 0 {
		t.Errorf("expected zero drift, got %v", resp.Drift)
	}
}
