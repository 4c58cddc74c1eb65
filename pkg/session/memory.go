package session

import (
	"net/url"
	"sync"

	"github.com/indykite/indykite-sdk-web-sub001/pkg/msg"
)

// MemoryStore keeps all conversation state in process memory. It is
// the default store for embedded use and safe for concurrent access.
type MemoryStore struct {
	mu       sync.RWMutex
	threads  map[ThreadSlot]string
	cv       string
	origin   url.Values
	start    string
	pending  *msg.Message
	creds    *Credentials
	onLogin  func(*msg.Message)
}

var _ Store = (*MemoryStore)(nil)

type MemoryStoreOption func(*MemoryStore)

// WithLoginHook registers a callback invoked after credentials are
// persisted on login success.
func WithLoginHook(hook func(*msg.Message)) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.onLogin = hook
	}
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		threads: map[ThreadSlot]string{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) ThreadID(slot ThreadSlot) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threads[slot]
}

func (s *MemoryStore) SetThreadID(slot ThreadSlot, thid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[slot] = thid
	return nil
}

func (s *MemoryStore) CodeVerifier() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cv
}

func (s *MemoryStore) SetCodeVerifier(cv string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cv = cv
	return nil
}

func (s *MemoryStore) OidcOriginalParams() url.Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.origin == nil {
		return url.Values{}
	}
	cloned := url.Values{}
	for k, v := range s.origin {
		cloned[k] = append([]string(nil), v...)
	}
	return cloned
}

func (s *MemoryStore) SetOidcOriginalParams(params url.Values) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.origin = params
	return nil
}

func (s *MemoryStore) AuthFlowStartPoint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.start
}

func (s *MemoryStore) SetAuthFlowStartPoint(u string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.start = u
	return nil
}

func (s *MemoryStore) ClearOidcData() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.origin = nil
	s.cv = ""
	s.start = ""
	return nil
}

func (s *MemoryStore) PendingResponse() *msg.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending
}

func (s *MemoryStore) SetPendingResponse(m *msg.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = m
	return nil
}

func (s *MemoryStore) StoreOnLoginSuccess(m *msg.Message) error {
	s.mu.Lock()
	s.creds = &Credentials{
		Token:          m.Token,
		RefreshToken:   m.RefreshToken,
		TokenType:      m.TokenType,
		ExpirationTime: m.ExpirationTime,
	}
	hook := s.onLogin
	s.mu.Unlock()
	if hook != nil {
		hook(m)
	}
	return nil
}

func (s *MemoryStore) Credentials() *Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}
