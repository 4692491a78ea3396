package submissions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPCaseStoreRegister(t *testing.T) {
	var got CaseRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/cases" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{"trackingId":"CASE-2024-0001"}`))
	}))
	defer srv.Close()

	store := NewHTTPCaseStore(srv.URL+"/", "secret", time.Second)
	id, err := store.Register(context.Background(), CaseRequest{
		SessionID:    "s1",
		DocumentType: "name_change",
		Language:     "hi",
		FieldValues:  map[string]string{"new_name": "Ravi Kumar"},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id != "CASE-2024-0001" {
		t.Fatalf("id = %q", id)
	}
	if got.DocumentType != "name_change" || got.FieldValues["new_name"] != "Ravi Kumar" || got.TrackingID != "" {
		t.Fatalf("request body = %+v", got)
	}
}

func TestHTTPCaseStoreErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "server error", status: http.StatusServiceUnavailable, body: "down", wantMsg: "status 503"},
		{name: "bad json", status: http.StatusOK, body: "{", wantMsg: "case store response"},
		{name: "missing id", status: http.StatusOK, body: `{"trackingId":"  "}`, wantMsg: "missing trackingId"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewHTTPCaseStore(srv.URL, "", time.Second).Register(context.Background(), CaseRequest{})
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("err = %v, want containing %q", err, tt.wantMsg)
			}
		})
	}
}

func TestHTTPCaseStoreNotConfigured(t *testing.T) {
	_, err := NewHTTPCaseStore("", "", 0).Register(context.Background(), CaseRequest{})
	if !errors.Is(err, ErrStoreNotConfigured) {
		t.Fatalf("expected ErrStoreNotConfigured, got %v", err)
	}
}
