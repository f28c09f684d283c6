package game

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

const DefaultTrialCost = 10

type Config struct {
	TrialCost     int           // points per trial, also the per-trial refund on a win
	NotifyTimeout time.Duration // per-recipient deadline for reset pushes
	RecordTimeout time.Duration // deadline for each WinRecorder call
}

// WinEvent describes a winning guess. Generation is the secret generation
// that was won.
type WinEvent struct {
	Winner     string    `json:"winner"`
	Refund     int       `json:"refund"`
	Score      int       `json:"score"`
	Generation uint64    `json:"generation"`
	At         time.Time `json:"at"`
}

// WinRecorder receives win events after the fact. Game state never depends
// on it.
type WinRecorder interface {
	RecordWin(ctx context.Context, ev WinEvent) error
}

type Server struct {
	cfg       Config
	log       *slog.Logger
	store     *SessionStore
	secret    *SecretHolder
	bcast     *Broadcaster
	recorders []WinRecorder

	// bgMu guards closing and every wg.Add; Wait holds it so no Add races
	// a Wait in progress
	bgMu    sync.Mutex
	closing bool
	wg      sync.WaitGroup

	connMu      sync.Mutex
	conns       map[*wsHandle]struct{}
	connsClosed bool
}

func NewServer(cfg Config, store *SessionStore, secret *SecretHolder, bcast *Broadcaster, log *slog.Logger, recorders ...WinRecorder) *Server {
	if cfg.TrialCost <= 0 {
		cfg.TrialCost = DefaultTrialCost
	}
	if cfg.RecordTimeout <= 0 {
		cfg.RecordTimeout = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	if bcast == nil {
		bcast = NewBroadcaster(log, cfg.NotifyTimeout)
	}
	return &Server{
		cfg:       cfg,
		log:       log,
		store:     store,
		secret:    secret,
		bcast:     bcast,
		recorders: recorders,
		conns:     make(map[*wsHandle]struct{}),
	}
}

func (s *Server) identity(h ClientHandle) (string, error) {
	if h == nil {
		return "", fmt.Errorf("%w: nil handle", ErrClientNotRegistered)
	}
	id, err := h.Identity()
	if err != nil {
		return "", fmt.Errorf("resolve client identity: %w", err)
	}
	return id, nil
}

// RegisterClient creates a fresh account for the handle's identity and
// returns its starting score.
func (s *Server) RegisterClient(h ClientHandle) (int, error) {
	id, err := s.identity(h)
	if err != nil {
		return 0, err
	}
	acc, err := s.store.Register(id, h)
	if err != nil {
		return 0, err
	}
	s.log.Info("client registered", "client_id", id, "score", acc.Score)
	return acc.Score, nil
}

// BuyTrials exchanges n*TrialCost points for n trials. Nothing changes when
// the score does not cover the cost.
func (s *Server) BuyTrials(h ClientHandle, n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("%w: trial count must be positive, got %d", ErrInvalidArgument, n)
	}
	id, err := s.identity(h)
	if err != nil {
		return 0, err
	}

	var after Account
	err = s.store.WithAccount(id, func(a *Account) error {
		cost := n * s.cfg.TrialCost
		if cost/n != s.cfg.TrialCost || a.Score < cost {
			return fmt.Errorf("%w: cost %d, score %d", ErrInsufficientFunds, cost, a.Score)
		}
		a.Score -= cost
		a.Trials += n
		after = *a
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("trials bought", "client_id", id, "count", n, "score", after.Score, "trials", after.Trials)
	return after.Score, nil
}

// MakeGuess consumes one trial and scores guess against the current secret.
// With no trials left it returns an ERROR result and consumes nothing.
func (s *Server) MakeGuess(h ClientHandle, guess int) (GuessResult, error) {
	id, err := s.identity(h)
	if err != nil {
		return GuessResult{}, err
	}

	var (
		res GuessResult
		win *WinEvent
	)
	err = s.store.WithAccount(id, func(a *Account) error {
		if a.Trials <= 0 {
			res = GuessResult{
				Status:          StatusError,
				CurrentScore:    a.Score,
				RemainingTrials: a.Trials,
				Message:         "No trials left. Please buy more trials.",
			}
			return nil
		}
		a.Trials--

		var won uint64
		o := s.secret.Guess(guess, func(generation uint64) {
			won = generation
			// still under the secret lock: nobody can score against the new
			// secret before the reset is on its way
			s.scheduleReset(fmt.Sprintf("Client %s won! A new number has been generated.", id))
		})

		if o.Status == StatusCorrect {
			refund := a.Trials * s.cfg.TrialCost
			a.Score += refund
			a.Trials = 0
			res = GuessResult{
				Status:          StatusCorrect,
				ScoreChange:     refund,
				CurrentScore:    a.Score,
				RemainingTrials: 0,
				Message:         fmt.Sprintf("%s Points refunded: %d", o.Message, refund),
			}
			win = &WinEvent{Winner: id, Refund: refund, Score: a.Score, Generation: won, At: time.Now()}
			return nil
		}

		a.Score += o.ScoreDelta
		res = GuessResult{
			Status:          o.Status,
			ScoreChange:     o.ScoreDelta,
			CurrentScore:    a.Score,
			RemainingTrials: a.Trials,
			Message:         o.Message,
		}
		return nil
	})
	if err != nil {
		return GuessResult{}, err
	}

	if win != nil {
		s.log.Info("secret guessed", "client_id", id, "guess", guess, "refund", win.Refund, "generation", win.Generation)
		s.scheduleRecord(*win)
	} else {
		s.log.Debug("guess evaluated", "client_id", id, "guess", guess, "status", res.Status, "score", res.CurrentScore)
	}
	return res, nil
}

func (s *Server) GetScore(h ClientHandle) (int, error) {
	id, err := s.identity(h)
	if err != nil {
		return 0, err
	}
	acc, err := s.store.Get(id)
	if err != nil {
		return 0, err
	}
	return acc.Score, nil
}

// ClientCount is the number of registered clients.
func (s *Server) ClientCount() int {
	return s.store.Len()
}

// goBackground runs fn on its own goroutine and counts it for Wait. After
// Shutdown it drops fn and reports false.
func (s *Server) goBackground(fn func()) bool {
	s.bgMu.Lock()
	defer s.bgMu.Unlock()
	if s.closing {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
	return true
}

// scheduleReset snapshots the peers and hands delivery to a goroutine.
func (s *Server) scheduleReset(message string) {
	peers := s.store.Handles()
	if !s.goBackground(func() {
		s.bcast.Broadcast(context.Background(), message, peers)
	}) {
		s.log.Debug("reset not sent, server is shutting down", "peers", len(peers))
	}
}

func (s *Server) scheduleRecord(ev WinEvent) {
	for _, rec := range s.recorders {
		scheduled := s.goBackground(func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RecordTimeout)
			defer cancel()
			if err := rec.RecordWin(ctx, ev); err != nil {
				s.log.Warn("record win failed", "client_id", ev.Winner, "error", err)
			}
		})
		if !scheduled {
			s.log.Warn("win not recorded, server is shutting down", "client_id", ev.Winner)
			return
		}
	}
}

// Wait blocks until every scheduled broadcast and win record finished.
// New work scheduled meanwhile waits for Wait to return.
func (s *Server) Wait() {
	s.bgMu.Lock()
	defer s.bgMu.Unlock()
	s.wg.Wait()
}

// Shutdown stops scheduling background work, closes every live websocket and
// waits for pending deliveries until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.bgMu.Lock()
	s.closing = true
	s.bgMu.Unlock()

	s.CloseConnections()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CloseConnections closes every live websocket and refuses new ones.
// Accounts stay registered.
func (s *Server) CloseConnections() {
	s.connMu.Lock()
	s.connsClosed = true
	conns := make([]*wsHandle, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.connMu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func (s *Server) trackConn(c *wsHandle) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.connsClosed {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrackConn(c *wsHandle) {
	s.connMu.Lock()
	delete(s.conns, c)
	s.connMu.Unlock()
}

// LiveConnections is the number of open websocket connections.
func (s *Server) LiveConnections() int {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return len(s.conns)
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/ws", s.handleWS)
}
