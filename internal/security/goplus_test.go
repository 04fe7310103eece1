package security

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const testToken = "0xAbCd000000000000000000000000000000000001"

func TestTokenSecuritySuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/v1/token_security/56") {
			t.Errorf("检测必须固定走 BSC 链标识, path=%s", r.URL.Path)
		}
		if got := r.URL.Query().Get("contract_addresses"); got != strings.ToLower(testToken) {
			t.Errorf("地址应小写传递, got %s", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"code": 1, "message": "OK",
			"result": map[string]any{
				strings.ToLower(testToken): map[string]string{"is_honeypot": "0"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	raw, err := client.TokenSecurity(context.Background(), testToken)
	if err != nil {
		t.Fatalf("检测不应失败: %v", err)
	}
	var profile struct {
		IsHoneypot string `json:"is_honeypot"`
	}
	if err := json.Unmarshal(raw, &profile); err != nil {
		t.Fatalf("解析画像失败: %v", err)
	}
	if profile.IsHoneypot != "0" {
		t.Fatalf("unexpected profile: %s", raw)
	}
}

func TestTokenSecurityBusinessFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"code": 2004, "message": "rate limited"})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	_, err := client.TokenSecurity(context.Background(), testToken)

	var failed *CheckFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("业务失败应返回 CheckFailedError, got %v", err)
	}
	if failed.APICode != 2004 {
		t.Fatalf("unexpected code: %d", failed.APICode)
	}
}

func TestTokenSecurityTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	_, err := client.TokenSecurity(context.Background(), testToken)
	if err == nil {
		t.Fatal("传输失败必须报错")
	}
	var failed *CheckFailedError
	if errors.As(err, &failed) {
		t.Fatal("传输失败不应被当成业务失败")
	}
}

func TestTokenSecurityMissingProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"code": 1, "message": "OK", "result": map[string]any{}})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	raw, err := client.TokenSecurity(context.Background(), testToken)
	if err != nil {
		t.Fatalf("空结果不算失败: %v", err)
	}
	if string(raw) != "{}" {
		t.Fatalf("期望空画像, got %s", raw)
	}
}
