package mockidp

import (
	"crypto/sha256"
	"encoding/base64"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/segmentio/ksuid"

	"github.com/indykite/indykite-sdk-web-sub001/pkg/msg"
)

// conversation is the server-side state of one client conversation.
type conversation struct {
	thid string
	flow msg.Flow

	mu            sync.Mutex
	user          string
	approved      bool
	codeChallenge string
	oidcState     string
	feeds         []*websocket.Conn
}

func (c *conversation) approve() {
	c.mu.Lock()
	c.approved = true
	c.mu.Unlock()
	c.broadcast("approved")
}

func (c *conversation) isApproved() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.approved
}

func (c *conversation) setUser(name string) {
	c.mu.Lock()
	c.user = name
	c.mu.Unlock()
}

// beginOidc records the PKCE challenge and state of a provider hop.
func (c *conversation) beginOidc(challenge, state string) {
	c.mu.Lock()
	c.codeChallenge = challenge
	c.oidcState = state
	c.mu.Unlock()
}

func (c *conversation) pkceChallenge() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codeChallenge
}

func (c *conversation) stateMatches(state string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.oidcState == state
}

// broadcast pushes an event to every attached feed. Dead connections
// are dropped silently.
func (c *conversation) broadcast(event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	alive := c.feeds[:0]
	for _, ws := range c.feeds {
		if err := ws.WriteJSON(map[string]string{"thid": c.thid, "event": event}); err == nil {
			alive = append(alive, ws)
		} else {
			ws.Close()
		}
	}
	c.feeds = alive
}

func (c *conversation) attachFeed(ws *websocket.Conn) {
	c.mu.Lock()
	c.feeds = append(c.feeds, ws)
	c.mu.Unlock()
}

// conversationStore indexes conversations by thread id. Aliases let
// one conversation be reachable under extra keys: verifier nonces and
// OIDC states.
type conversationStore struct {
	mu    sync.Mutex
	byKey map[string]*conversation
}

func newConversationStore() *conversationStore {
	return &conversationStore{byKey: make(map[string]*conversation)}
}

func (s *conversationStore) create(flow msg.Flow) *conversation {
	conv := &conversation{thid: ksuid.New().String(), flow: flow}
	s.mu.Lock()
	s.byKey[conv.thid] = conv
	s.mu.Unlock()
	return conv
}

// derive branches an existing conversation into another flow under a
// fresh thread, keeping the original untouched.
func (s *conversationStore) derive(thid string, flow msg.Flow) *conversation {
	parent := s.get(thid)
	conv := s.create(flow)
	if parent != nil {
		parent.mu.Lock()
		conv.user = parent.user
		parent.mu.Unlock()
	}
	return conv
}

func (s *conversationStore) get(key string) *conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byKey[key]
}

func (s *conversationStore) alias(key string, conv *conversation) {
	s.mu.Lock()
	s.byKey[key] = conv
	s.mu.Unlock()
}

// challengeMatches verifies a PKCE-style S256 challenge.
func challengeMatches(challenge, verifier string) bool {
	hash := sha256.Sum256([]byte(verifier))
	return challenge == base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(hash[:])
}
