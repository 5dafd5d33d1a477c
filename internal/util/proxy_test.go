package util

import (
	"net/http"
	"testing"
)

func TestNewProxyFunc(t *testing.T) {
	proxy := NewProxyFunc("http://proxy.local:3128", "", "internal.example.com")

	req, _ := http.NewRequest(http.MethodGet, "https://google.serper.dev/search", nil)
	u, err := proxy(req)
	if err != nil {
		t.Fatalf("proxy failed: %v", err)
	}
	if u == nil || u.Host != "proxy.local:3128" {
		t.Errorf("expected https request to use http proxy, got %v", u)
	}

	req, _ = http.NewRequest(http.MethodGet, "http://internal.example.com/doc", nil)
	u, err = proxy(req)
	if err != nil {
		t.Fatalf("proxy failed: %v", err)
	}
	if u != nil {
		t.Errorf("expected no proxy for excluded host, got %v", u)
	}
}

func TestNewProxyFunc_SeparateSchemes(t *testing.T) {
	proxy := NewProxyFunc("http://plain.local:80", "http://secure.local:443", "")

	req, _ := http.NewRequest(http.MethodGet, "https://example.com", nil)
	u, _ := proxy(req)
	if u == nil || u.Host != "secure.local:443" {
		t.Errorf("expected https proxy, got %v", u)
	}

	req, _ = http.NewRequest(http.MethodGet, "http://example.com", nil)
	u, _ = proxy(req)
	if u == nil || u.Host != "plain.local:80" {
		t.Errorf("expected http proxy, got %v", u)
	}
}
