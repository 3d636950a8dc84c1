package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fee-ledger/internal/domain"
	"fee-ledger/internal/repository"
)

type entryFixture struct {
	records   FeeRecordRepository
	schedules *repository.FeeScheduleRepository
	notifier  *fakeFeeNotifier
	svc       *EntryService
}

func newEntryFixture(t *testing.T, records FeeRecordRepository) *entryFixture {
	t.Helper()
	if records == nil {
		records = newRecordRepo(t)
	}
	schedules := repository.NewFeeScheduleRepository(filepath.Join(t.TempDir(), "student_fees.json"))
	notifier := &fakeFeeNotifier{}
	svc := NewEntryService(records, NewStatusService(records), NewScheduleService(schedules), notifier)
	svc.now = func() time.Time { return time.Date(2024, time.April, 10, 9, 0, 0, 0, time.Local) }
	return &entryFixture{records: records, schedules: schedules, notifier: notifier, svc: svc}
}

var clerk = Actor{Username: "clerk"}
var admin = Actor{Username: "admin", IsAdmin: true}

func monthlyRequest(months ...string) EntryRequest {
	return EntryRequest{
		StudentName:   "  Ali Khan ",
		ClassCategory: "Class 5",
		ClassSection:  "A",
		FeeType:       domain.FeeMonthly,
		Months:        months,
		PaymentMethod: domain.PaymentCash,
		Signature:     "Mr. Aslam",
	}
}

func oneTimeRequest(t domain.FeeType, date time.Time) EntryRequest {
	return EntryRequest{
		StudentName:   "Ali Khan",
		ClassCategory: "Class 5",
		FeeType:       t,
		PaymentMethod: domain.PaymentCheque,
		Date:          date,
		Signature:     "Mr. Aslam",
	}
}

func int64Ptr(v int64) *int64 { return &v }

func TestEntryService_MonthlyFees(t *testing.T) {
	fx := newEntryFixture(t, nil)
	ctx := context.Background()

	res, err := fx.svc.Submit(ctx, clerk, monthlyRequest("april", "MAY", "APRIL"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.ID != "17C40C7D" || res.AcademicYear != "2024-2025" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(res.Records) != 2 || res.Total != 4000 {
		t.Fatalf("expected two records of 2000, got %+v", res)
	}
	for _, rec := range res.Records {
		if rec.MonthlyFee != domain.DefaultMonthlyFee || rec.ReceivedAmount != rec.MonthlyFee {
			t.Fatalf("unexpected amounts %+v", rec)
		}
		if rec.StudentName != "Ali Khan" || rec.Date.Format(time.DateOnly) != "2024-04-10" {
			t.Fatalf("unexpected record %+v", rec)
		}
	}

	stored, _ := fx.records.LoadAll(ctx)
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored records, got %d", len(stored))
	}
	if fx.notifier.count() != 1 {
		t.Fatalf("expected one notification, got %d", fx.notifier.count())
	}

	_, err = fx.svc.Submit(ctx, clerk, monthlyRequest("JUNE", "MAY"))
	if !errors.Is(err, domain.ErrMonthAlreadyPaid) {
		t.Fatalf("expected ErrMonthAlreadyPaid, got %v", err)
	}
	stored, _ = fx.records.LoadAll(ctx)
	if len(stored) != 2 {
		t.Fatalf("rejected submission must not write, got %d records", len(stored))
	}
}

func TestEntryService_OneTimeFeeOncePerYear(t *testing.T) {
	fx := newEntryFixture(t, nil)
	ctx := context.Background()

	res, err := fx.svc.Submit(ctx, clerk, oneTimeRequest(domain.FeeAnnual, day(2024, time.April, 15)))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	rec := res.Records[0]
	if rec.Month != domain.MonthAnnual || rec.AnnualCharges != 5000 || rec.ReceivedAmount != 5000 {
		t.Fatalf("unexpected annual record %+v", rec)
	}

	_, err = fx.svc.Submit(ctx, clerk, oneTimeRequest(domain.FeeAnnual, day(2025, time.January, 3)))
	if !errors.Is(err, domain.ErrDuplicateOneTimeFee) {
		t.Fatalf("expected ErrDuplicateOneTimeFee, got %v", err)
	}
	var ote *domain.OneTimeFeeError
	if !errors.As(err, &ote) || ote.AcademicYear != "2024-2025" {
		t.Fatalf("expected OneTimeFeeError for 2024-2025, got %v", err)
	}

	if _, err := fx.svc.Submit(ctx, clerk, oneTimeRequest(domain.FeeAdmission, day(2024, time.April, 15))); err != nil {
		t.Fatalf("admission fee is independent of annual charges: %v", err)
	}
	if _, err := fx.svc.Submit(ctx, clerk, oneTimeRequest(domain.FeeAnnual, day(2025, time.April, 1))); err != nil {
		t.Fatalf("annual charges in the next academic year: %v", err)
	}
}

func TestEntryService_ScheduleAmounts(t *testing.T) {
	fx := newEntryFixture(t, nil)
	ctx := context.Background()
	id := domain.DeriveIdentity("Ali Khan", "Class 5")

	// no schedule: anyone may set the amount
	res, err := fx.svc.Submit(ctx, clerk, func() EntryRequest {
		r := monthlyRequest("APRIL")
		r.Amount = int64Ptr(1800)
		return r
	}())
	if err != nil || res.Total != 1800 {
		t.Fatalf("expected override without schedule, got %+v %v", res, err)
	}

	if err := fx.schedules.Set(ctx, id, domain.FeeSchedule{MonthlyFee: 2500, AnnualCharges: 6000, AdmissionFee: 1200}); err != nil {
		t.Fatalf("set schedule: %v", err)
	}

	res, err = fx.svc.Submit(ctx, clerk, monthlyRequest("MAY"))
	if err != nil || res.Total != 2500 {
		t.Fatalf("expected scheduled amount, got %+v %v", res, err)
	}

	override := monthlyRequest("JUNE")
	override.Amount = int64Ptr(1000)
	if _, err := fx.svc.Submit(ctx, clerk, override); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-admin override, got %v", err)
	}

	same := monthlyRequest("JUNE")
	same.Amount = int64Ptr(2500)
	if _, err := fx.svc.Submit(ctx, clerk, same); err != nil {
		t.Fatalf("matching amount should be accepted: %v", err)
	}

	override.Months = []string{"JULY"}
	res, err = fx.svc.Submit(ctx, admin, override)
	if err != nil || res.Total != 1000 {
		t.Fatalf("expected admin override, got %+v %v", res, err)
	}
}

func TestEntryService_Validation(t *testing.T) {
	fx := newEntryFixture(t, nil)

	tests := []struct {
		name   string
		mutate func(r *EntryRequest)
	}{
		{"missing name", func(r *EntryRequest) { r.StudentName = " " }},
		{"missing signature", func(r *EntryRequest) { r.Signature = "" }},
		{"unknown category", func(r *EntryRequest) { r.ClassCategory = "Class 11" }},
		{"unknown method", func(r *EntryRequest) { r.PaymentMethod = "Barter" }},
		{"unknown fee type", func(r *EntryRequest) { r.FeeType = "Bus Fee" }},
		{"no months", func(r *EntryRequest) { r.Months = nil }},
		{"bad month", func(r *EntryRequest) { r.Months = []string{"ANNUAL"} }},
		{"zero amount", func(r *EntryRequest) { r.Amount = int64Ptr(0) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := monthlyRequest("APRIL")
			tt.mutate(&req)
			if _, err := fx.svc.Submit(context.Background(), clerk, req); !errors.Is(err, domain.ErrInvalidFeeRecord) {
				t.Fatalf("expected ErrInvalidFeeRecord, got %v", err)
			}
		})
	}
}

func TestEntryService_StorageFailure(t *testing.T) {
	storeErr := &domain.StorageError{Op: "append fee records", Err: errors.New("disk full")}
	fx := newEntryFixture(t, failingRecords{FeeRecordRepository: newRecordRepo(t), err: storeErr})

	_, err := fx.svc.Submit(context.Background(), clerk, monthlyRequest("APRIL"))
	var se *domain.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if fx.notifier.count() != 0 {
		t.Fatal("no notification expected for a failed write")
	}
}

func TestEntryService_ConcurrentOneTimeFee(t *testing.T) {
	fx := newEntryFixture(t, nil)
	ctx := context.Background()

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok, dupes int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fx.svc.Submit(ctx, clerk, oneTimeRequest(domain.FeeAdmission, day(2024, time.May, 1)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrDuplicateOneTimeFee):
				dupes++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 1 || dupes != n-1 {
		t.Fatalf("expected exactly one success, got ok=%d dupes=%d", ok, dupes)
	}
}

func TestEntryService_OneTimeFeeReceivedAmount(t *testing.T) {
	fx := newEntryFixture(t, nil)
	ctx := context.Background()

	req := oneTimeRequest(domain.FeeAdmission, day(2024, time.April, 15))
	req.ReceivedAmount = int64Ptr(600)
	res, err := fx.svc.Submit(ctx, clerk, req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	rec := res.Records[0]
	if rec.AdmissionFee != 1000 || rec.ReceivedAmount != 600 || res.Total != 600 {
		t.Fatalf("expected charge 1000 with 600 received, got %+v (total %d)", rec, res.Total)
	}

	_, admissionPaid, err := NewStatusService(fx.records).AnnualAndAdmissionPaid(ctx, res.ID, "2024-2025")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !admissionPaid {
		t.Fatalf("a partly received admission fee still counts as recorded")
	}

	neg := oneTimeRequest(domain.FeeAnnual, day(2024, time.April, 15))
	neg.ReceivedAmount = int64Ptr(-1)
	if _, err := fx.svc.Submit(ctx, clerk, neg); !errors.Is(err, domain.ErrInvalidFeeRecord) {
		t.Fatalf("expected ErrInvalidFeeRecord for a negative received amount, got %v", err)
	}

	monthly := monthlyRequest("APRIL")
	monthly.ReceivedAmount = int64Ptr(10)
	res, err = fx.svc.Submit(ctx, clerk, monthly)
	if err != nil {
		t.Fatalf("monthly submit: %v", err)
	}
	if res.Records[0].ReceivedAmount != 2000 {
		t.Fatalf("monthly fees receive the monthly fee, got %d", res.Records[0].ReceivedAmount)
	}
}
