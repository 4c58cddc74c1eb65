package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sync"

	"github.com/indykite/indykite-sdk-web-sub001/pkg/msg"
)

// fileState is the on-disk shape of a FileStore.
type fileState struct {
	Threads            map[ThreadSlot]string `json:"threads,omitempty"`
	CodeVerifier       string                `json:"code_verifier,omitempty"`
	OidcOriginalParams url.Values            `json:"oidc_original_params,omitempty"`
	AuthFlowStartPoint string                `json:"auth_flow_start_point,omitempty"`
	PendingResponse    *msg.Message          `json:"pending_response,omitempty"`
	Credentials        *Credentials          `json:"credentials,omitempty"`
}

// FileStore persists conversation state to a JSON file, so a CLI can
// resume an OIDC flow or a pending response across invocations.
type FileStore struct {
	mu    sync.Mutex
	path  string
	state fileState
}

var _ Store = (*FileStore)(nil)

// NewFileStore loads existing state from path, or starts empty when
// the file does not exist yet.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:  path,
		state: fileState{Threads: map[ThreadSlot]string{}},
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read session file: %w", err)
	}
	if err := json.Unmarshal(data, &s.state); err != nil {
		return nil, fmt.Errorf("unable to parse session file %s: %w", path, err)
	}
	if s.state.Threads == nil {
		s.state.Threads = map[ThreadSlot]string{}
	}
	return s, nil
}

// save writes the state under s.mu.
func (s *FileStore) save() error {
	data, err := json.MarshalIndent(&s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to encode session state: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("unable to write session file: %w", err)
	}
	return nil
}

func (s *FileStore) ThreadID(slot ThreadSlot) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Threads[slot]
}

func (s *FileStore) SetThreadID(slot ThreadSlot, thid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Threads[slot] = thid
	return s.save()
}

func (s *FileStore) CodeVerifier() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CodeVerifier
}

func (s *FileStore) SetCodeVerifier(cv string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CodeVerifier = cv
	return s.save()
}

func (s *FileStore) OidcOriginalParams() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.OidcOriginalParams == nil {
		return url.Values{}
	}
	return s.state.OidcOriginalParams
}

func (s *FileStore) SetOidcOriginalParams(params url.Values) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.OidcOriginalParams = params
	return s.save()
}

func (s *FileStore) AuthFlowStartPoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.AuthFlowStartPoint
}

func (s *FileStore) SetAuthFlowStartPoint(u string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.AuthFlowStartPoint = u
	return s.save()
}

func (s *FileStore) ClearOidcData() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.OidcOriginalParams = nil
	s.state.CodeVerifier = ""
	s.state.AuthFlowStartPoint = ""
	return s.save()
}

func (s *FileStore) PendingResponse() *msg.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.PendingResponse
}

func (s *FileStore) SetPendingResponse(m *msg.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.PendingResponse = m
	return s.save()
}

func (s *FileStore) StoreOnLoginSuccess(m *msg.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Credentials = &Credentials{
		Token:          m.Token,
		RefreshToken:   m.RefreshToken,
		TokenType:      m.TokenType,
		ExpirationTime: m.ExpirationTime,
	}
	return s.save()
}

func (s *FileStore) Credentials() *Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Credentials
}
