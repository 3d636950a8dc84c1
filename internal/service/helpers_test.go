package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fee-ledger/internal/domain"
	"fee-ledger/internal/repository"
)

func newRecordRepo(t *testing.T) *repository.FeeRecordRepository {
	t.Helper()
	return repository.NewFeeRecordRepository(filepath.Join(t.TempDir(), "fees_data.csv"))
}

// failingRecords fails every append and leaves reads to the wrapped store.
type failingRecords struct {
	FeeRecordRepository
	err error
}

func (f failingRecords) AppendBatch(ctx context.Context, records []domain.FeeRecord) error {
	return f.err
}

type recordedNotice struct {
	username, studentID string
	months              []string
	total               int64
}

type fakeFeeNotifier struct {
	mu      sync.Mutex
	notices []recordedNotice
}

func (n *fakeFeeNotifier) NotifyFeesRecorded(ctx context.Context, username, studentID string, months []string, total int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, recordedNotice{username, studentID, months, total})
	return nil
}

func (n *fakeFeeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notices)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func monthly(name, category, month string, date time.Time) domain.FeeRecord {
	return domain.FeeRecord{
		ID:             domain.DeriveIdentity(name, category),
		StudentName:    name,
		ClassCategory:  category,
		Month:          month,
		MonthlyFee:     2000,
		ReceivedAmount: 2000,
		PaymentMethod:  domain.PaymentCash,
		Date:           date,
		Signature:      "Mr. Aslam",
	}
}

func oneTime(name, category string, t domain.FeeType, amount int64, date time.Time) domain.FeeRecord {
	rec := domain.FeeRecord{
		ID:             domain.DeriveIdentity(name, category),
		StudentName:    name,
		ClassCategory:  category,
		Month:          t.Sentinel(),
		ReceivedAmount: amount,
		PaymentMethod:  domain.PaymentBankTransfer,
		Date:           date,
		Signature:      "Mr. Aslam",
	}
	if t == domain.FeeAnnual {
		rec.AnnualCharges = amount
	} else {
		rec.AdmissionFee = amount
	}
	return rec
}

func mustAppend(t *testing.T, repo FeeRecordRepository, records ...domain.FeeRecord) {
	t.Helper()
	if err := repo.AppendBatch(context.Background(), records); err != nil {
		t.Fatalf("append: %v", err)
	}
}
