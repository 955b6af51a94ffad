package zhihuauth

import (
	"strings"
	"testing"
)

func TestStateRoundTrip(t *testing.T) {
	redirect := "https://hub.example.com/v1/oauth/zhihu/callback"

	state, err := EncodeState(redirect)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	got, ok := DecodeState(state)
	if !ok {
		t.Fatalf("decode failed for %q", state)
	}
	if got != redirect {
		t.Errorf("redirect = %q, want %q", got, redirect)
	}
}

func TestStateNonceDiffers(t *testing.T) {
	a, err := EncodeState("https://a.example/cb")
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	b, err := EncodeState("https://a.example/cb")
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if a == b {
		t.Error("two states for the same redirect must carry different nonces")
	}
}

func TestDecodeStateRejectsMalformed(t *testing.T) {
	for _, state := range []string{"", "nodot", "nonce.%%%"} {
		if _, ok := DecodeState(state); ok {
			t.Errorf("expected rejection of %q", state)
		}
	}
}

func TestAuthCodeURLRequiresCredentials(t *testing.T) {
	var cfg Config
	if _, err := cfg.AuthCodeURL("https://a.example/cb", "state"); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	cfg = Config{ClientID: "id", ClientSecret: "secret"}
	authURL, err := cfg.AuthCodeURL("https://a.example/cb", "the-state")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(authURL, "https://www.zhihu.com/oauth/authorize") {
		t.Errorf("url = %q, want zhihu authorize endpoint", authURL)
	}
	if !strings.Contains(authURL, "state=the-state") {
		t.Errorf("url %q missing state", authURL)
	}
}
