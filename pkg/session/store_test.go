package session

import (
	"net/url"
	"path/filepath"
	"testing"

	"github.com/indykite/indykite-sdk-web-sub001/pkg/msg"
)

func TestMemoryStoreThreadSlots(t *testing.T) {
	s := NewMemoryStore()
	if err := s.SetThreadID(SlotMain, "main-1"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetThreadID(SlotForgotten, "forgotten-1"); err != nil {
		t.Fatal(err)
	}
	if got := s.ThreadID(SlotMain); got != "main-1" {
		t.Fatalf("main slot corrupted: %q", got)
	}
	if got := s.ThreadID(SlotForgotten); got != "forgotten-1" {
		t.Fatalf("forgotten slot corrupted: %q", got)
	}
}

func TestMemoryStoreClearOidcData(t *testing.T) {
	s := NewMemoryStore()
	s.SetCodeVerifier("cv-1")
	s.SetOidcOriginalParams(url.Values{"state": {"abc"}})
	s.SetAuthFlowStartPoint("https://app.example.com/login")

	if err := s.ClearOidcData(); err != nil {
		t.Fatal(err)
	}
	if s.CodeVerifier() != "" {
		t.Fatal("code verifier survived ClearOidcData")
	}
	if len(s.OidcOriginalParams()) != 0 {
		t.Fatal("original params survived ClearOidcData")
	}
	if s.AuthFlowStartPoint() != "" {
		t.Fatal("flow start point survived ClearOidcData")
	}
}

func TestMemoryStorePendingResponseOverwrites(t *testing.T) {
	s := NewMemoryStore()
	s.SetPendingResponse(&msg.Message{Type: msg.TypeOidc, ID: "first"})
	s.SetPendingResponse(&msg.Message{Type: msg.TypeOidc, ID: "second"})
	if got := s.PendingResponse(); got == nil || got.ID != "second" {
		t.Fatalf("expected second pending response, got %+v", got)
	}
	s.SetPendingResponse(nil)
	if s.PendingResponse() != nil {
		t.Fatal("nil must clear the pending response")
	}
}

func TestMemoryStoreLoginHook(t *testing.T) {
	var hooked *msg.Message
	s := NewMemoryStore(WithLoginHook(func(m *msg.Message) { hooked = m }))
	success := &msg.Message{Type: msg.TypeSuccess, Token: "at", RefreshToken: "rt"}
	if err := s.StoreOnLoginSuccess(success); err != nil {
		t.Fatal(err)
	}
	if hooked != success {
		t.Fatal("login hook not invoked")
	}
	creds := s.Credentials()
	if creds == nil || creds.Token != "at" || creds.RefreshToken != "rt" {
		t.Fatalf("credentials not persisted: %+v", creds)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	s, err := NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetThreadID(SlotMain, "persisted-1"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetCodeVerifier("cv-persisted"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetPendingResponse(&msg.Message{Type: msg.TypeOidc, URL: "https://idp.example.com/auth"}); err != nil {
		t.Fatal(err)
	}

	reloaded, err := NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := reloaded.ThreadID(SlotMain); got != "persisted-1" {
		t.Fatalf("thread id not reloaded: %q", got)
	}
	if got := reloaded.CodeVerifier(); got != "cv-persisted" {
		t.Fatalf("code verifier not reloaded: %q", got)
	}
	pending := reloaded.PendingResponse()
	if pending == nil || pending.URL != "https://idp.example.com/auth" {
		t.Fatalf("pending response not reloaded: %+v", pending)
	}
}
