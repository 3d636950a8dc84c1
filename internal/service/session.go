package service

import (
	"context"
	"errors"
	"log"
	"time"

	"fee-ledger/internal/domain"

	"github.com/google/uuid"
)

type SessionRepository interface {
	Save(ctx context.Context, s domain.Session) error
	Get(ctx context.Context, token string) (domain.Session, error)
	Delete(ctx context.Context, token string) error
	PruneExpired(ctx context.Context, now time.Time) (int, error)
}

// SessionService issues opaque bearer tokens. A session never outlives the
// account's trial window.
type SessionService struct {
	accounts *AccountService
	repo     SessionRepository
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionService(accounts *AccountService, repo SessionRepository, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SessionService{accounts: accounts, repo: repo, ttl: ttl, now: time.Now}
}

func (s *SessionService) Login(ctx context.Context, username, password string) (domain.Session, domain.AuthResult, error) {
	res, err := s.accounts.Authenticate(ctx, username, password)
	if err != nil {
		return domain.Session{}, domain.AuthResult{}, err
	}

	ttl := s.ttl
	if res.HasTrial && res.TrialRemaining < ttl {
		ttl = res.TrialRemaining
	}

	now := s.now()
	sess := domain.Session{
		Token:     uuid.NewString(),
		Username:  res.Username,
		IsAdmin:   res.IsAdmin,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.repo.Save(ctx, sess); err != nil {
		return domain.Session{}, domain.AuthResult{}, err
	}

	log.Printf("[AUTH] %s logged in, session expires %s", sess.Username, sess.ExpiresAt.Format(time.DateTime))
	return sess, res, nil
}

func (s *SessionService) Resolve(ctx context.Context, token string) (domain.Session, error) {
	if token == "" {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	sess, err := s.repo.Get(ctx, token)
	if err != nil {
		return domain.Session{}, err
	}
	now := s.now()
	if sess.Expired(now) {
		return domain.Session{}, domain.ErrSessionNotFound
	}

	// Admin flag and trial come from the current account, not the login snapshot.
	acc, err := s.accounts.Get(ctx, sess.Username)
	if errors.Is(err, domain.ErrAccountNotFound) {
		_ = s.repo.Delete(ctx, token)
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, err
	}
	if acc.TrialExpired(now) {
		_ = s.repo.Delete(ctx, token)
		return domain.Session{}, domain.ErrTrialExpired
	}
	sess.IsAdmin = acc.IsAdmin
	return sess, nil
}

func (s *SessionService) Logout(ctx context.Context, token string) error {
	return s.repo.Delete(ctx, token)
}

// PruneExpired is run periodically to drop expired sessions.
func (s *SessionService) PruneExpired(ctx context.Context) (int, error) {
	return s.repo.PruneExpired(ctx, s.now())
}
