package api

import (
	"fmt"
	"sync"

	"mowakeb/internal/qa"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// sessionStore keeps the most recent QA sessions by id and remembers which
// one was uploaded last.
type sessionStore struct {
	cache *lru.Cache[string, *qa.Session]

	mu     sync.Mutex
	latest string
}

func newSessionStore(size int) (*sessionStore, error) {
	if size <= 0 {
		size = 16
	}
	cache, err := lru.New[string, *qa.Session](size)
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	return &sessionStore{cache: cache}, nil
}

// Add stores s under a new id and makes it the latest session.
func (st *sessionStore) Add(s *qa.Session) string {
	id := uuid.NewString()
	st.mu.Lock()
	defer st.mu.Unlock()
	st.cache.Add(id, s)
	st.latest = id
	return id
}

func (st *sessionStore) Get(id string) (*qa.Session, bool) {
	return st.cache.Get(id)
}

// Latest returns the most recently uploaded session, if it is still cached.
func (st *sessionStore) Latest() (*qa.Session, bool) {
	st.mu.Lock()
	id := st.latest
	st.mu.Unlock()
	if id == "" {
		return nil, false
	}
	return st.cache.Peek(id)
}

func (st *sessionStore) Len() int {
	return st.cache.Len()
}
