package game

import (
	"fmt"
	"sync"
)

// Account is a client's score and trial balance.
type Account struct {
	Score  int `json:"score"`
	Trials int `json:"trials"`
}

// Peer pairs a registered identity with the handle it registered with.
type Peer struct {
	ID     string
	Handle ClientHandle
}

type session struct {
	mu      sync.Mutex
	account Account
	handle  ClientHandle
}

// SessionStore maps client identity to account. The map lock only guards
// structural changes; every account has its own mutex so different clients
// never wait on each other.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*session

	initialScore     int
	rejectDuplicates bool
}

type StoreOptions struct {
	InitialScore int
	// RejectDuplicates makes Register fail for a known identity instead of
	// replacing its account.
	RejectDuplicates bool
}

func NewSessionStore(opts StoreOptions) *SessionStore {
	return &SessionStore{
		sessions:         make(map[string]*session),
		initialScore:     opts.InitialScore,
		rejectDuplicates: opts.RejectDuplicates,
	}
}

// Register creates a fresh account for id, replacing any previous one.
func (s *SessionStore) Register(id string, h ClientHandle) (Account, error) {
	sess := &session{
		account: Account{Score: s.initialScore},
		handle:  h,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; ok && s.rejectDuplicates {
		return Account{}, fmt.Errorf("%w: %s", ErrAlreadyRegistered, id)
	}
	s.sessions[id] = sess
	return sess.account, nil
}

func (s *SessionStore) lookup(id string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrClientNotRegistered, id)
	}
	return sess, nil
}

func (s *SessionStore) Get(id string) (Account, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return Account{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.account, nil
}

// WithAccount runs fn with exclusive access to id's account. fn works on a
// copy; the copy is stored back only when fn returns nil, so a failed fn
// leaves the account untouched.
func (s *SessionStore) WithAccount(id string, fn func(a *Account) error) error {
	sess, err := s.lookup(id)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	a := sess.account
	if err := fn(&a); err != nil {
		return err
	}
	if a.Trials < 0 {
		return fmt.Errorf("%w: trials would become %d", ErrInvalidArgument, a.Trials)
	}
	sess.account = a
	return nil
}

// Handles returns a snapshot of every registered peer.
func (s *SessionStore) Handles() []Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	peers := make([]Peer, 0, len(s.sessions))
	for id, sess := range s.sessions {
		peers = append(peers, Peer{ID: id, Handle: sess.handle})
	}
	return peers
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
