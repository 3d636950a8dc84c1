package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"fee-ledger/internal/domain"
)

const accountTimeLayout = "2006-01-02 15:04:05"

// accountRow is the persisted shape of one account, keyed by username.
type accountRow struct {
	Password   string `json:"password"`
	IsAdmin    bool   `json:"is_admin"`
	Email      string `json:"email"`
	CreatedAt  string `json:"created_at"`
	TrialStart string `json:"trial_start,omitempty"`
	TrialEnd   string `json:"trial_end,omitempty"`
}

// AccountRepository stores accounts in a JSON object keyed by username.
type AccountRepository struct {
	path string
	mu   sync.RWMutex
}

func NewAccountRepository(path string) *AccountRepository {
	return &AccountRepository{path: path}
}

func (r *AccountRepository) load() (map[string]accountRow, error) {
	rows := map[string]accountRow{}
	if err := readJSONFile(r.path, &rows); err != nil {
		return nil, &domain.StorageError{Op: "read accounts", Err: err}
	}
	return rows, nil
}

func (r *AccountRepository) save(rows map[string]accountRow) error {
	if err := writeJSONFileAtomic(r.path, rows); err != nil {
		return &domain.StorageError{Op: "write accounts", Err: err}
	}
	return nil
}

// Create stores a new account. The username and the email must both be unused.
func (r *AccountRepository) Create(ctx context.Context, acc domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.load()
	if err != nil {
		return err
	}
	if _, ok := rows[acc.Username]; ok {
		return domain.ErrUsernameExists
	}
	for _, row := range rows {
		if strings.EqualFold(row.Email, acc.Email) {
			return domain.ErrDuplicateEmail
		}
	}

	rows[acc.Username] = toAccountRow(acc)
	return r.save(rows)
}

func (r *AccountRepository) Get(ctx context.Context, username string) (domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.load()
	if err != nil {
		return domain.Account{}, err
	}
	row, ok := rows[username]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return fromAccountRow(username, row)
}

// List returns all accounts ordered by username.
func (r *AccountRepository) List(ctx context.Context) ([]domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.load()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Account, 0, len(rows))
	for name, row := range rows {
		acc, err := fromAccountRow(name, row)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *AccountRepository) SetAdmin(ctx context.Context, username string, isAdmin bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.load()
	if err != nil {
		return err
	}
	row, ok := rows[username]
	if !ok {
		return domain.ErrAccountNotFound
	}
	row.IsAdmin = isAdmin
	rows[username] = row
	return r.save(rows)
}

func toAccountRow(acc domain.Account) accountRow {
	return accountRow{
		Password:   acc.PasswordHash,
		IsAdmin:    acc.IsAdmin,
		Email:      acc.Email,
		CreatedAt:  formatAccountTime(acc.CreatedAt),
		TrialStart: formatAccountTime(acc.TrialStart),
		TrialEnd:   formatAccountTime(acc.TrialEnd),
	}
}

func fromAccountRow(username string, row accountRow) (domain.Account, error) {
	acc := domain.Account{
		Username:     username,
		PasswordHash: row.Password,
		Email:        row.Email,
		IsAdmin:      row.IsAdmin,
	}

	fields := []struct {
		name string
		raw  string
		dst  *time.Time
	}{
		{"created_at", row.CreatedAt, &acc.CreatedAt},
		{"trial_start", row.TrialStart, &acc.TrialStart},
		{"trial_end", row.TrialEnd, &acc.TrialEnd},
	}
	for _, f := range fields {
		t, err := parseAccountTime(f.raw)
		if err != nil {
			return domain.Account{}, &domain.StorageError{
				Op:  fmt.Sprintf("decode account %s", username),
				Err: &domain.ParseError{Column: f.name, Err: err},
			}
		}
		*f.dst = t
	}
	return acc, nil
}

func formatAccountTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(time.Local).Format(accountTimeLayout)
}

// parseAccountTime yields the zero time for an empty value. A value that is
// present but unreadable is an error, so a damaged trial_end never reads as
// "no trial".
func parseAccountTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(accountTimeLayout, s, time.Local)
}
