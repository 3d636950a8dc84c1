package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"fee-ledger/internal/clients"
	"fee-ledger/internal/domain"
	"fee-ledger/internal/repository"

	"github.com/xuri/excelize/v2"
)

type fakeExportNotifier struct {
	mu       sync.Mutex
	progress []float64
	complete int
	failed   []string
}

func (n *fakeExportNotifier) NotifyExportProgress(ctx context.Context, username, exportID string, progress float64, stage string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.progress = append(n.progress, progress)
	return nil
}

func (n *fakeExportNotifier) NotifyExportComplete(ctx context.Context, username, exportID, url, filename string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.complete++
	return nil
}

func (n *fakeExportNotifier) NotifyExportFailed(ctx context.Context, username, exportID, errMsg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, errMsg)
	return nil
}

type brokenStorage struct{}

func (brokenStorage) Save(ctx context.Context, fileName string, data []byte) (string, error) {
	return "", errors.New("bucket unavailable")
}

func (brokenStorage) PublicURL(ctx context.Context, name string) (string, error) {
	return "", errors.New("bucket unavailable")
}

func TestExportService_RecordsExport(t *testing.T) {
	records := newRecordRepo(t)
	mustAppend(t, records,
		monthly("Ali Khan", "Class 5", "APRIL", day(2024, time.April, 5)),
		monthly("Sara", "Nursery", "APRIL", day(2024, time.April, 6)),
	)

	storage, err := clients.NewLocalStorage(t.TempDir(), "/files", "")
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	statuses := repository.NewMemoryExportStatusRepository()
	notifier := &fakeExportNotifier{}
	svc := NewExportService(NewReportService(records), statuses, storage, notifier)
	ctx := context.Background()

	if _, err := svc.StartRecordsExport(ctx, clerk, RecordsFilter{}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	id, err := svc.StartRecordsExport(ctx, admin, RecordsFilter{AcademicYear: "2024-2025"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !strings.HasPrefix(id, "exports:") {
		t.Fatalf("unexpected export id %q", id)
	}
	svc.Wait()

	st, err := svc.Get(ctx, admin, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !st.Done() || st.FileURL == nil || st.Error != nil {
		t.Fatalf("expected finished export, got %+v", st)
	}
	if notifier.complete != 1 || len(notifier.progress) == 0 {
		t.Fatalf("unexpected notifications %+v", notifier)
	}
	for _, p := range notifier.progress {
		if p >= 100 {
			t.Fatalf("progress must stay below 100 until the file is stored, got %v", p)
		}
	}

	stored := strings.TrimPrefix(*st.FileURL, "/files/")
	f, err := excelize.OpenFile(filepath.Join(storage.BaseDir, stored))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Fee Records")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) < 3 || rows[0][0] != "ID" || rows[1][1] != "Ali Khan" || rows[2][1] != "Sara" {
		t.Fatalf("unexpected rows %v", rows)
	}
	last := rows[len(rows)-1]
	if last[0] != "Total" || last[8] != "4000" {
		t.Fatalf("unexpected total row %v", last)
	}

	list, err := svc.List(ctx, admin)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %v", list, err)
	}
	if _, err := svc.Get(ctx, Actor{Username: "other"}, id); !errors.Is(err, domain.ErrExportNotFound) {
		t.Fatalf("expected other users not to see the export, got %v", err)
	}
}

func TestExportService_YearlyExport(t *testing.T) {
	records := newRecordRepo(t)
	mustAppend(t, records, monthly("Ali Khan", "Class 5", "APRIL", day(2024, time.April, 5)))

	dir := t.TempDir()
	storage, _ := clients.NewLocalStorage(dir, "/files", "")
	svc := NewExportService(NewReportService(records), repository.NewMemoryExportStatusRepository(), storage, nil)
	ctx := context.Background()

	if _, err := svc.StartYearlyExport(ctx, admin, "17C40C7D", "2024"); !errors.Is(err, domain.ErrInvalidFeeRecord) {
		t.Fatalf("expected ErrInvalidFeeRecord, got %v", err)
	}

	id, err := svc.StartYearlyExport(ctx, admin, "17C40C7D", "2024-2025")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	svc.Wait()

	st, err := svc.Get(ctx, admin, id)
	if err != nil || !st.Done() {
		t.Fatalf("expected finished export, got %+v %v", st, err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), "yearly_17C40C7D_2024-2025.xlsx") {
		t.Fatalf("unexpected stored files %v", entries)
	}
}

func TestExportService_StorageFailure(t *testing.T) {
	records := newRecordRepo(t)
	notifier := &fakeExportNotifier{}
	svc := NewExportService(NewReportService(records), repository.NewMemoryExportStatusRepository(), brokenStorage{}, notifier)
	ctx := context.Background()

	id, err := svc.StartRecordsExport(ctx, admin, RecordsFilter{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	svc.Wait()

	st, err := svc.Get(ctx, admin, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if st.Done() || st.Error == nil || !strings.Contains(*st.Error, "bucket unavailable") {
		t.Fatalf("expected failed export, got %+v", st)
	}
	if len(notifier.failed) != 1 {
		t.Fatalf("expected one failure notification, got %v", notifier.failed)
	}
}
