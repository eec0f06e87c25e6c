package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ordersvc/commander/internal/core/domain"
)

func TestPaymentClientStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantRef    string
		wantClass  domain.FailureClass
		wantErr    bool
		wantReason string
	}{
		{
			name:    "success returns ref",
			status:  http.StatusOK,
			body:    `{"ref":"txn-123"}`,
			wantRef: "txn-123",
		},
		{
			name:       "payment required is a rejection",
			status:     http.StatusPaymentRequired,
			body:       `{"reason":"insufficient funds"}`,
			wantErr:    true,
			wantClass:  domain.FailureTerminal,
			wantReason: "insufficient funds",
		},
		{
			name:      "conflict is a rejection",
			status:    http.StatusConflict,
			body:      `{"reason":"duplicate charge"}`,
			wantErr:   true,
			wantClass: domain.FailureTerminal,
		},
		{
			name:      "unprocessable is a rejection",
			status:    http.StatusUnprocessableEntity,
			body:      `{"reason":"bad card"}`,
			wantErr:   true,
			wantClass: domain.FailureTerminal,
		},
		{
			name:      "internal error is transient",
			status:    http.StatusInternalServerError,
			body:      `whoops`,
			wantErr:   true,
			wantClass: domain.FailureTransient,
		},
		{
			name:      "rate limited is transient",
			status:    http.StatusTooManyRequests,
			body:      ``,
			wantErr:   true,
			wantClass: domain.FailureTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/pay" {
					t.Errorf("path = %s, want /pay", r.URL.Path)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewPaymentClient(Config{URL: srv.URL})
			ref, err := client.Pay(context.Background(), "o1", 4200)

			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Pay: %v", err)
				}
				if ref != tt.wantRef {
					t.Errorf("ref = %q, want %q", ref, tt.wantRef)
				}
				return
			}

			if err == nil {
				t.Fatal("expected error")
			}
			if got := domain.Classify(err); got != tt.wantClass {
				t.Errorf("Classify = %v, want %v (err: %v)", got, tt.wantClass, err)
			}
			if tt.wantReason != "" {
				var rejection *domain.RejectionError
				if !errors.As(err, &rejection) || rejection.Reason != tt.wantReason {
					t.Errorf("err = %v, want rejection with reason %q", err, tt.wantReason)
				}
			}
		})
	}
}

func TestClientConnectionRefusedIsTransient(t *testing.T) {
	// Closed server: connection errors must surface as unavailability.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewMessagingClient(Config{URL: srv.URL})
	err := client.Notify(context.Background(), "o1", "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if domain.Classify(err) != domain.FailureTransient {
		t.Errorf("Classify = %v, want transient (err: %v)", domain.Classify(err), err)
	}
}

func TestShippingClientSendsItems(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"ref":"ship-9"}`))
	}))
	defer srv.Close()

	client := NewShippingClient(Config{URL: srv.URL})
	ref, err := client.Ship(context.Background(), "o1", []domain.LineItem{{SKU: "sku-1", Quantity: 2}})
	if err != nil {
		t.Fatalf("Ship: %v", err)
	}
	if ref != "ship-9" {
		t.Errorf("ref = %q", ref)
	}
	if gotPath != "/ship" {
		t.Errorf("path = %q, want /ship", gotPath)
	}
}
