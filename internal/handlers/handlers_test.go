package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jbily/BANKS-MO/internal/cards"
	"github.com/jbily/BANKS-MO/internal/handlers"
	"github.com/jbily/BANKS-MO/internal/ledger"
	"github.com/jbily/BANKS-MO/internal/routes"
	"github.com/jbily/BANKS-MO/internal/store/memory"
)

const testSecret = "test-secret"

type env struct {
	srv *httptest.Server
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := memory.New(2 * time.Second)
	ledgerSvc := ledger.NewService(st, ledger.Config{}, nil, nil)
	cardSvc := cards.NewService(st, cards.Config{}, nil, nil)
	h := handlers.New(ledgerSvc, cardSvc, st, testSecret, time.Hour, nil)
	srv := httptest.NewServer(routes.NewRoutes(h, testSecret, nil))
	t.Cleanup(srv.Close)
	return &env{srv: srv}
}

func (e *env) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func (e *env) register(t *testing.T, email string) string {
	t.Helper()
	resp, _ := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"firstName": "Test", "lastName": "User", "email": email, "password": "hunter22",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d", resp.StatusCode)
	}
	resp, body := e.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": email, "password": "hunter22",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("login returned no token")
	}
	return token
}

func (e *env) openAccount(t *testing.T, token, deposit string) string {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/accounts/", token, map[string]string{
		"accountType": "checking", "currency": "USD", "initialDeposit": deposit,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create account status = %d: %v", resp.StatusCode, body)
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatal("create account returned no id")
	}
	return id
}

func TestAuthFlow(t *testing.T) {
	e := newEnv(t)

	resp, _ := e.do(t, http.MethodGet, "/auth/me", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated /auth/me status = %d, want 401", resp.StatusCode)
	}

	resp, _ = e.do(t, http.MethodGet, "/auth/me", "not-a-jwt", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("garbage token status = %d, want 401", resp.StatusCode)
	}

	token := e.register(t, "flow@test.local")
	resp, body := e.do(t, http.MethodGet, "/auth/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/auth/me status = %d", resp.StatusCode)
	}
	if body["email"] != "flow@test.local" {
		t.Errorf("me email = %v", body["email"])
	}

	resp, _ = e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"firstName": "Test", "lastName": "User", "email": "flow@test.local", "password": "other",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate register status = %d, want 409", resp.StatusCode)
	}

	resp, _ = e.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "flow@test.local", "password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad password status = %d, want 401", resp.StatusCode)
	}
}

func TestAccountLifecycleOverHTTP(t *testing.T) {
	e := newEnv(t)
	token := e.register(t, "life@test.local")
	acctID := e.openAccount(t, token, "100.00")

	resp, body := e.do(t, http.MethodPost, "/accounts/"+acctID+"/deposit", token, map[string]string{
		"amount": "25.50", "description": "top up",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deposit status = %d: %v", resp.StatusCode, body)
	}
	if body["newBalance"] != "125.5" {
		t.Errorf("newBalance = %v, want 125.5", body["newBalance"])
	}

	resp, body = e.do(t, http.MethodPost, "/accounts/"+acctID+"/withdraw", token, map[string]string{
		"amount": "500.00",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("overdraft status = %d, want 409: %v", resp.StatusCode, body)
	}

	resp, body = e.do(t, http.MethodGet, "/accounts/"+acctID+"/transactions?limit=10", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("transactions status = %d", resp.StatusCode)
	}
	if body["totalCount"] != float64(2) {
		t.Errorf("totalCount = %v, want 2", body["totalCount"])
	}

	resp, _ = e.do(t, http.MethodPost, "/accounts/"+acctID+"/close", token, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("close with balance status = %d, want 409", resp.StatusCode)
	}
}

func TestTransferOverHTTP(t *testing.T) {
	e := newEnv(t)
	alice := e.register(t, "alice@test.local")
	bob := e.register(t, "bob@test.local")
	src := e.openAccount(t, alice, "200.00")
	dst := e.openAccount(t, bob, "0")

	resp, body := e.do(t, http.MethodPost, "/transfers", alice, map[string]string{
		"fromAccountId": src, "toAccountId": dst, "amount": "50.00", "description": "rent",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("transfer status = %d: %v", resp.StatusCode, body)
	}

	// Bob cannot move Alice's funds; the account reads as absent.
	resp, _ = e.do(t, http.MethodPost, "/transfers", bob, map[string]string{
		"fromAccountId": src, "toAccountId": dst, "amount": "50.00",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("foreign transfer status = %d, want 404", resp.StatusCode)
	}

	resp, body = e.do(t, http.MethodGet, "/accounts/"+src, alice, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get account status = %d", resp.StatusCode)
	}
	if body["balance"] != "150" {
		t.Errorf("source balance = %v, want 150", body["balance"])
	}
}

func TestValidationErrors(t *testing.T) {
	e := newEnv(t)
	token := e.register(t, "val@test.local")
	acctID := e.openAccount(t, token, "0")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"bad amount string", http.MethodPost, "/accounts/" + acctID + "/deposit", map[string]string{"amount": "ten"}, http.StatusBadRequest},
		{"zero amount", http.MethodPost, "/accounts/" + acctID + "/deposit", map[string]string{"amount": "0"}, http.StatusBadRequest},
		{"bad account id", http.MethodPost, "/accounts/nope/deposit", map[string]string{"amount": "1"}, http.StatusBadRequest},
		{"unsupported currency", http.MethodPost, "/accounts/", map[string]string{"accountType": "checking", "currency": "XXX"}, http.StatusBadRequest},
		{"unknown type", http.MethodPost, "/accounts/", map[string]string{"accountType": "offshore", "currency": "USD"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := e.do(t, tt.method, tt.path, token, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d: %v", resp.StatusCode, tt.want, body)
			}
		})
	}
}

func TestCardFlowOverHTTP(t *testing.T) {
	e := newEnv(t)
	token := e.register(t, "card@test.local")
	acctID := e.openAccount(t, token, "300.00")

	resp, body := e.do(t, http.MethodPost, "/cards/", token, map[string]string{
		"accountId": acctID, "cardHolderName": "TEST USER",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("issue card status = %d: %v", resp.StatusCode, body)
	}
	cardID, _ := body["id"].(string)
	if cardID == "" {
		t.Fatal("issue returned no id")
	}
	if _, hasCVV := body["cvv"]; hasCVV {
		t.Error("cvv leaked in response")
	}

	resp, body = e.do(t, http.MethodPost, "/cards/"+cardID+"/purchase", token, map[string]string{
		"amount": "30.00", "merchant": "Grocer", "channel": "pos",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("purchase status = %d: %v", resp.StatusCode, body)
	}

	resp, _ = e.do(t, http.MethodPost, "/cards/"+cardID+"/freeze", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("freeze status = %d", resp.StatusCode)
	}
	resp, _ = e.do(t, http.MethodPost, "/cards/"+cardID+"/purchase", token, map[string]string{
		"amount": "10.00", "merchant": "Grocer",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("frozen purchase status = %d, want 409", resp.StatusCode)
	}

	resp, body = e.do(t, http.MethodGet, "/accounts/"+acctID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get account status = %d", resp.StatusCode)
	}
	if body["balance"] != "270" {
		t.Errorf("balance = %v, want 270", body["balance"])
	}
}

func TestRefundOverHTTP(t *testing.T) {
	e := newEnv(t)
	token := e.register(t, "refund@test.local")
	acctID := e.openAccount(t, token, "100.00")

	resp, body := e.do(t, http.MethodPost, "/accounts/"+acctID+"/withdraw", token, map[string]string{
		"amount": "40.00",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("withdraw status = %d", resp.StatusCode)
	}
	tx, _ := body["transaction"].(map[string]any)
	ref, _ := tx["reference"].(string)
	if ref == "" {
		t.Fatal("withdrawal returned no reference")
	}

	resp, _ = e.do(t, http.MethodPost, fmt.Sprintf("/transactions/%s/refund", ref), token, map[string]string{
		"amount": "40.00",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refund status = %d", resp.StatusCode)
	}

	resp, body = e.do(t, http.MethodGet, "/accounts/"+acctID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get account status = %d", resp.StatusCode)
	}
	if body["balance"] != "100" {
		t.Errorf("balance = %v, want 100", body["balance"])
	}
}
