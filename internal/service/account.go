package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"fee-ledger/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

type AccountRepository interface {
	Create(ctx context.Context, acc domain.Account) error
	Get(ctx context.Context, username string) (domain.Account, error)
	List(ctx context.Context) ([]domain.Account, error)
	SetAdmin(ctx context.Context, username string, isAdmin bool) error
}

var hashPasswordFunc = func(password string) ([]byte, error) { // mockable
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

type AccountService struct {
	repo AccountRepository
	now  func() time.Time
}

func NewAccountService(repo AccountRepository) *AccountService {
	return &AccountService{repo: repo, now: time.Now}
}

// Create registers an account with a fresh trial window starting now.
func (s *AccountService) Create(ctx context.Context, username, password, email string, isAdmin bool) (domain.Account, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if username == "" || password == "" {
		return domain.Account{}, domain.ErrInvalidAccount
	}
	if !domain.ValidEmail(email) {
		return domain.Account{}, domain.ErrInvalidEmail
	}

	hash, err := hashPasswordFunc(password)
	if err != nil {
		return domain.Account{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().Truncate(time.Second)
	acc := domain.Account{
		Username:     username,
		PasswordHash: string(hash),
		Email:        email,
		IsAdmin:      isAdmin,
		CreatedAt:    now,
		TrialStart:   now,
		TrialEnd:     now.Add(domain.TrialPeriod),
	}
	if err := s.repo.Create(ctx, acc); err != nil {
		return domain.Account{}, err
	}

	log.Printf("[AUTH] created account %s (admin=%t), trial ends %s", username, isAdmin, acc.TrialEnd.Format(time.DateTime))
	return acc, nil
}

// Authenticate checks the password and then the trial window. A correct
// password on an expired trial yields ErrTrialExpired.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (domain.AuthResult, error) {
	acc, err := s.repo.Get(ctx, strings.TrimSpace(username))
	if errors.Is(err, domain.ErrAccountNotFound) {
		return domain.AuthResult{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.AuthResult{}, err
	}
	if !verifyPassword(acc.PasswordHash, password) {
		return domain.AuthResult{}, domain.ErrInvalidCredentials
	}

	now := s.now()
	if acc.TrialExpired(now) {
		log.Printf("[AUTH] trial expired for %s", acc.Username)
		return domain.AuthResult{}, domain.ErrTrialExpired
	}

	return domain.AuthResult{
		OK:             true,
		Username:       acc.Username,
		IsAdmin:        acc.IsAdmin,
		HasTrial:       acc.HasTrial(),
		TrialRemaining: acc.TrialRemaining(now),
	}, nil
}

// verifyPassword accepts bcrypt hashes and the unsalted sha256 hex digests of
// accounts created before bcrypt was introduced.
func verifyPassword(stored, password string) bool {
	if strings.HasPrefix(stored, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}
	sum := sha256.Sum256([]byte(password))
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(stored)), []byte(hex.EncodeToString(sum[:]))) == 1
}

func (s *AccountService) Get(ctx context.Context, username string) (domain.Account, error) {
	return s.repo.Get(ctx, username)
}

func (s *AccountService) List(ctx context.Context, actor Actor) ([]domain.Account, error) {
	if !actor.IsAdmin {
		return nil, domain.ErrForbidden
	}
	return s.repo.List(ctx)
}

func (s *AccountService) SetAdmin(ctx context.Context, actor Actor, username string, isAdmin bool) error {
	if !actor.IsAdmin {
		return domain.ErrForbidden
	}
	if err := s.repo.SetAdmin(ctx, username, isAdmin); err != nil {
		return err
	}
	log.Printf("[AUTH] %s set admin=%t for %s", actor.Username, isAdmin, username)
	return nil
}
