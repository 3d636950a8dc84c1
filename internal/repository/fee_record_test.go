package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"fee-ledger/internal/domain"
)

func monthlyRecord(name, category, month string, amount int64) domain.FeeRecord {
	return domain.FeeRecord{
		ID:             domain.DeriveIdentity(name, category),
		StudentName:    name,
		ClassCategory:  category,
		ClassSection:   "A",
		Month:          month,
		MonthlyFee:     amount,
		ReceivedAmount: amount,
		PaymentMethod:  domain.PaymentCash,
		Date:           time.Date(2024, time.April, 5, 0, 0, 0, 0, time.Local),
		Signature:      "Mr. Aslam",
	}
}

func newTestFeeRecordRepo(t *testing.T) *FeeRecordRepository {
	t.Helper()
	repo := NewFeeRecordRepository(filepath.Join(t.TempDir(), "fees_data.csv"))
	repo.now = func() time.Time { return time.Date(2024, time.April, 5, 10, 30, 0, 0, time.Local) }
	return repo
}

func TestFeeRecordRepository_LoadAllMissingFile(t *testing.T) {
	repo := newTestFeeRecordRepo(t)

	got, err := repo.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestFeeRecordRepository_AppendAndLoad(t *testing.T) {
	repo := newTestFeeRecordRepo(t)
	ctx := context.Background()

	batch := []domain.FeeRecord{
		monthlyRecord("Ali Khan", "Class 5", "APRIL", 2000),
		monthlyRecord("Ali Khan", "Class 5", "MAY", 2000),
	}
	if err := repo.AppendBatch(ctx, batch); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := repo.AppendBatch(ctx, []domain.FeeRecord{monthlyRecord("Sara", "Nursery", "APRIL", 1500)}); err != nil {
		t.Fatalf("second append: %v", err)
	}

	got, err := repo.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}

	first := got[0]
	if first.ID != "17C40C7D" || first.Month != "APRIL" || first.MonthlyFee != 2000 || first.ReceivedAmount != 2000 {
		t.Fatalf("unexpected first record: %+v", first)
	}
	if first.AcademicYear != "2024-2025" {
		t.Fatalf("expected academic year to be filled, got %q", first.AcademicYear)
	}
	if got := first.Date.Format(RecordDateLayout); got != "2024-04-05" {
		t.Fatalf("unexpected date %s", got)
	}
	if got := first.EntryTimestamp.Format(RecordTimestampLayout); got != "2024-04-05 10:30:00" {
		t.Fatalf("unexpected entry timestamp %s", got)
	}
	if got[2].StudentName != "Sara" {
		t.Fatalf("expected file order to be kept, got %q last", got[2].StudentName)
	}

	data, err := os.ReadFile(repo.Path())
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if n := strings.Count(string(data), "ID,Student Name"); n != 1 {
		t.Fatalf("expected a single header, found %d", n)
	}
}

func TestFeeRecordRepository_LoadAllIsRepeatable(t *testing.T) {
	repo := newTestFeeRecordRepo(t)
	ctx := context.Background()

	if err := repo.AppendBatch(ctx, []domain.FeeRecord{monthlyRecord("Ali Khan", "Class 5", "APRIL", 2000)}); err != nil {
		t.Fatalf("append: %v", err)
	}

	a, err := repo.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	b, err := repo.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("loads differ:\n%+v\n%+v", a, b)
	}
}

func TestFeeRecordRepository_AppendRejectsInvalidBatch(t *testing.T) {
	repo := newTestFeeRecordRepo(t)

	bad := monthlyRecord("Ali Khan", "Class 5", "APRIL", 2000)
	bad.AnnualCharges = 5000

	err := repo.AppendBatch(context.Background(), []domain.FeeRecord{monthlyRecord("Ali Khan", "Class 5", "MAY", 2000), bad})
	if !errors.Is(err, domain.ErrInvalidFeeRecord) {
		t.Fatalf("expected ErrInvalidFeeRecord, got %v", err)
	}
	if _, statErr := os.Stat(repo.Path()); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("expected no file to be written, stat err = %v", statErr)
	}
}

func TestFeeRecordRepository_FailedAppendLeavesLedgerUnchanged(t *testing.T) {
	repo := newTestFeeRecordRepo(t)
	ctx := context.Background()

	if err := repo.AppendBatch(ctx, []domain.FeeRecord{monthlyRecord("Ali Khan", "Class 5", "APRIL", 2000)}); err != nil {
		t.Fatalf("append: %v", err)
	}
	before, err := repo.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	renameFunc = func(oldpath, newpath string) error { return errors.New("disk full") }
	t.Cleanup(func() { renameFunc = os.Rename })

	err = repo.AppendBatch(ctx, []domain.FeeRecord{
		monthlyRecord("Ali Khan", "Class 5", "MAY", 2000),
		monthlyRecord("Ali Khan", "Class 5", "JUNE", 2000),
	})
	var se *domain.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %v", err)
	}

	after, err := repo.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("ledger changed after failed append:\nbefore %+v\nafter  %+v", before, after)
	}

	entries, err := os.ReadDir(filepath.Dir(repo.Path()))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the ledger file, found %d entries", len(entries))
	}
}

func TestFeeRecordRepository_SkipsCorruptRows(t *testing.T) {
	repo := newTestFeeRecordRepo(t)
	content := strings.Join([]string{
		strings.Join(FeeRecordColumns, ","),
		"17C40C7D,Ali Khan,Class 5,A,APRIL,2000,0,0,2000,Cash,2024-04-05,Mr. Aslam,2024-04-05 10:00:00,2024-2025",
		"17C40C7D,Ali Khan,Class 5,A,MAY,abc,0,0,2000,Cash,2024-05-05,Mr. Aslam,2024-05-05 10:00:00,2024-2025",
		`17C40C7D,BAD"ROW,Class 5,A,JUNE,2000,0,0,2000,Cash,2024-06-05,Mr. Aslam,2024-06-05 10:00:00,2024-2025`,
		"17C40C7D,Ali Khan,Class 5",
		"",
		"2F7C8B63,Sara,Nursery,,ANNUAL,0,5000.0,0,5000,Bank Transfer,2024-04-07,,,2024-2025",
	}, "\n") + "\n"
	if err := os.WriteFile(repo.Path(), []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	got, err := repo.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 readable records, got %d: %+v", len(got), got)
	}
	if got[1].AnnualCharges != 5000 || got[1].Month != domain.MonthAnnual {
		t.Fatalf("unexpected annual record: %+v", got[1])
	}
	if !got[1].EntryTimestamp.IsZero() {
		t.Fatalf("expected empty entry timestamp to stay zero, got %v", got[1].EntryTimestamp)
	}
}

func TestFeeRecordRepository_KeepsExistingColumnOrder(t *testing.T) {
	repo := newTestFeeRecordRepo(t)
	cols := append([]string{}, FeeRecordColumns...)
	cols[0], cols[1] = cols[1], cols[0]
	header := "\ufeff" + strings.Join(cols, ",") + "\n"
	if err := os.WriteFile(repo.Path(), []byte(header), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	ctx := context.Background()
	if err := repo.AppendBatch(ctx, []domain.FeeRecord{monthlyRecord("Ali Khan", "Class 5", "APRIL", 2000)}); err != nil {
		t.Fatalf("append: %v", err)
	}

	data, err := os.ReadFile(repo.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "Ali Khan,17C40C7D,") {
		t.Fatalf("unexpected file content:\n%s", data)
	}

	got, err := repo.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 || got[0].ID != "17C40C7D" {
		t.Fatalf("unexpected records: %+v", got)
	}
}

func TestFeeRecordRepository_AppendRejectsIncompatibleHeader(t *testing.T) {
	repo := newTestFeeRecordRepo(t)
	if err := os.WriteFile(repo.Path(), []byte("ID,Student Name\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	err := repo.AppendBatch(context.Background(), []domain.FeeRecord{monthlyRecord("Ali Khan", "Class 5", "APRIL", 2000)})
	var se *domain.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %v", err)
	}
}

func TestFeeRecordRepository_Queries(t *testing.T) {
	repo := newTestFeeRecordRepo(t)
	ctx := context.Background()

	older := monthlyRecord("Ali Khan", "Class 5", "MARCH", 2000)
	older.Date = time.Date(2024, time.March, 10, 0, 0, 0, 0, time.Local)

	batch := []domain.FeeRecord{
		older,
		monthlyRecord("Ali Khan", "Class 5", "APRIL", 2000),
		monthlyRecord("Sara", "Nursery", "APRIL", 1500),
	}
	if err := repo.AppendBatch(ctx, batch); err != nil {
		t.Fatalf("append: %v", err)
	}

	ali := domain.DeriveIdentity("Ali Khan", "Class 5")
	all, err := repo.QueryByIdentity(ctx, ali)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records for %s, got %d", ali, len(all))
	}

	current, err := repo.QueryByIdentityAndYear(ctx, ali, "2024-2025")
	if err != nil {
		t.Fatalf("query by year: %v", err)
	}
	if len(current) != 1 || current[0].Month != "APRIL" {
		t.Fatalf("unexpected records for 2024-2025: %+v", current)
	}

	none, err := repo.QueryByIdentity(ctx, "FFFFFFFF")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", none)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "", want: 0},
		{in: "nan", want: 0},
		{in: "2000", want: 2000},
		{in: "2000.0", want: 2000},
		{in: "2000.5", wantErr: true},
		{in: "-5", wantErr: true},
		{in: "abc", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseAmount(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("parseAmount(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if err == nil && got != tt.want {
			t.Fatalf("parseAmount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
