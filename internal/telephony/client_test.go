package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_PlaceCall(t *testing.T) {
	var got createCallBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/call" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing bearer key")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"prov-123","status":"queued"}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL + "/", APIKey: "key", PhoneNumberID: "pn-1"})
	res, err := c.PlaceCall(context.Background(), OutboundCallRequest{
		OrganizationID: "org1",
		AgentID:        "asst-1",
		CustomerPhone:  "+16502530000",
		Metadata:       map[string]string{"callId": "c1"},
	})
	if err != nil {
		t.Fatalf("place call: %v", err)
	}
	if res.ProviderCallID != "prov-123" || res.Status != "queued" {
		t.Fatalf("unexpected result %+v", res)
	}
	if got.AssistantID != "asst-1" || got.PhoneNumberID != "pn-1" || got.Customer.Number != "+16502530000" || got.Metadata["callId"] != "c1" {
		t.Fatalf("unexpected request body %+v", got)
	}
}

func TestClient_PlaceCallRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid number"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	_, err := c.PlaceCall(context.Background(), OutboundCallRequest{OrganizationID: "o", AgentID: "a", CustomerPhone: "+1"})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}

	if _, err := c.PlaceCall(context.Background(), OutboundCallRequest{OrganizationID: "o"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}
