// backend/src/backend/client_test.go
package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/username/chamasats/backend/src/logger"
	"github.com/username/chamasats/backend/src/models"
	"github.com/username/chamasats/backend/src/svcerror"
)

func init() {
	logger.InitLogger("error")
}

func TestEnvelopeDataDecoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer svc-token" {
			t.Errorf("missing bearer token, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"id":"tx-1","chama_id":"ch-1","member_id":"m-1","type":"DEPOSIT","status":"PROCESSING","amount":"5000","currency":"KES","created_at":"2026-01-05T10:00:00Z"}}`))
	}))
	defer srv.Close()

	cc := NewChamaClient(NewClient(srv.URL, "svc-token", 5*time.Second))
	tx, err := cc.GetTransaction(context.Background(), "ch-1", "tx-1")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if tx.ID != "tx-1" || tx.Status != models.ChamaTxProcessing {
		t.Errorf("unexpected transaction: %+v", tx)
	}
	if tx.Amount.String() != "5000" || tx.Currency != "KES" {
		t.Errorf("amount should pass through unchanged, got %s %s", tx.Amount, tx.Currency)
	}
}

func TestEnvelopeErrorIsBusinessError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"wallet is locked until 2026-12-01"}`))
	}))
	defer srv.Close()

	pc := NewPersonalClient(NewClient(srv.URL, "", 5*time.Second))
	_, err := pc.GetTransaction(context.Background(), "u-1", "tx-9")
	if err == nil {
		t.Fatal("expected business error")
	}
	if !svcerror.IsKind(err, svcerror.KindBusinessRule) {
		t.Errorf("expected business_rule kind, got %s", svcerror.KindOf(err))
	}
}

func TestUnparseableBodyIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	mc := NewMembershipClient(NewClient(srv.URL, "", 5*time.Second))
	_, err := mc.GetOffers(context.Background())
	if err == nil {
		t.Fatal("expected transport error")
	}
	if !svcerror.IsKind(err, svcerror.KindTransport) {
		t.Errorf("expected transport kind, got %s", svcerror.KindOf(err))
	}
}

func TestConnectionFailureIsTransportError(t *testing.T) {
	cc := NewChamaClient(NewClient("http://127.0.0.1:1", "", 500*time.Millisecond))
	_, err := cc.GetMembers(context.Background(), "ch-1")
	if err == nil {
		t.Fatal("expected transport error")
	}
	if !svcerror.IsKind(err, svcerror.KindTransport) {
		t.Errorf("expected transport kind, got %s", svcerror.KindOf(err))
	}
}
