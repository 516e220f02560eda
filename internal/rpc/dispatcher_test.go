package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/codecoder/codecoder/internal/apperr"
)

func TestDispatcher_CallsRegisteredHandler(t *testing.T) {
	d := NewDispatcher()
	d.Register("echo.ping", func(ctx context.Context, args json.RawMessage) (any, error) {
		return map[string]string{"pong": "ok"}, nil
	})

	result, err := d.Call(context.Background(), "echo.ping", nil)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if m, ok := result.(map[string]string); !ok || m["pong"] != "ok" {
		t.Errorf("result = %#v", result)
	}
}

func TestDispatcher_UnknownMethodNotFound(t *testing.T) {
	d := NewDispatcher()
	_, err := d.Call(context.Background(), "nope.nope", nil)
	if !isNotFound(err) {
		t.Errorf("expected not_found, got %v", err)
	}
}

func isNotFound(err error) bool {
	return err != nil && apperr.Code(err) == "not_found"
}

func TestDecode_EmptyArgsReturnsZeroValue(t *testing.T) {
	type args struct {
		Name string `json:"name"`
	}
	v, err := Decode[args](nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Name != "" {
		t.Errorf("expected zero value, got %+v", v)
	}
}

func TestDecode_InvalidJSONFails(t *testing.T) {
	type args struct {
		Name string `json:"name"`
	}
	_, err := Decode[args](json.RawMessage(`{not json`))
	if apperr.Code(err) != "invalid_argument" {
		t.Errorf("expected invalid_argument, got %v", err)
	}
}

func TestHTTPServer_HealthIsAnonymous(t *testing.T) {
	disp := NewDispatcher()
	srv := NewHTTPServer(HTTPConfig{APIKey: "secret"}, disp)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestHTTPServer_RPCRequiresAPIKeyWhenConfigured(t *testing.T) {
	disp := NewDispatcher()
	disp.Register("echo.ping", func(ctx context.Context, args json.RawMessage) (any, error) {
		return "pong", nil
	})
	srv := NewHTTPServer(HTTPConfig{APIKey: "secret"}, disp)

	body, _ := json.Marshal(request{Namespace: "echo", Method: "ping"})

	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing key: status = %d", w.Code)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(body))
	req2.Header.Set("X-API-Key", "secret")
	w2 := httptest.NewRecorder()
	srv.Router().ServeHTTP(w2, req2)
	if w2.Code != http.StatusOK {
		t.Fatalf("valid key: status = %d, body = %s", w2.Code, w2.Body.String())
	}

	var resp response
	if err := json.Unmarshal(w2.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Result != "pong" {
		t.Errorf("result = %v", resp.Result)
	}
}

func TestHTTPServer_UnknownMethodReturns404Envelope(t *testing.T) {
	disp := NewDispatcher()
	srv := NewHTTPServer(HTTPConfig{}, disp)

	body, _ := json.Marshal(request{Namespace: "nope", Method: "nope"})
	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	var resp response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != "not_found" {
		t.Errorf("error = %+v", resp.Error)
	}
}
