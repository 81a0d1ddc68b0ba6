package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func TestLedgerUnitPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/price" {
			t.Errorf("path: got %q", r.URL.Path)
		}
		w.Write([]byte(`{"price": "1.25"}`))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL).LedgerUnitPrice(context.Background())
	if err != nil {
		t.Fatalf("LedgerUnitPrice: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("1.25")) {
		t.Errorf("price: got %s want 1.25", got)
	}
}

func TestLedgerUnitPrice_NumericBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"price": 0.03}`))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL).LedgerUnitPrice(context.Background())
	if err != nil {
		t.Fatalf("LedgerUnitPrice: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("0.03")) {
		t.Errorf("price: got %s want 0.03", got)
	}
}

func TestLedgerUnitPrice_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL).LedgerUnitPrice(context.Background()); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestLedgerUnitPrice_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL).LedgerUnitPrice(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}
