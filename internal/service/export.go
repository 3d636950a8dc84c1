package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"fee-ledger/internal/domain"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

type ExportStatusRepository interface {
	Save(ctx context.Context, s domain.ExportStatus) error
	Get(ctx context.Context, key string) (domain.ExportStatus, error)
	List(ctx context.Context, username string) ([]domain.ExportStatus, error)
}

// ExportStorage is where finished workbooks go: local disk or S3.
type ExportStorage interface {
	Save(ctx context.Context, fileName string, data []byte) (string, error)
	PublicURL(ctx context.Context, name string) (string, error)
}

type ExportNotifier interface {
	NotifyExportProgress(ctx context.Context, username, exportID string, progress float64, stage string) error
	NotifyExportComplete(ctx context.Context, username, exportID, url, filename string) error
	NotifyExportFailed(ctx context.Context, username, exportID, errMsg string) error
}

const (
	exportTypeRecords = "fee_records"
	exportTypeYearly  = "yearly_report"

	exportChunkSize = 500
)

type recordColumn struct {
	Header string
	Value  func(r domain.FeeRecord) any
}

var recordColumns = []recordColumn{
	{"ID", func(r domain.FeeRecord) any { return r.ID.String() }},
	{"Student Name", func(r domain.FeeRecord) any { return r.StudentName }},
	{"Class Category", func(r domain.FeeRecord) any { return r.ClassCategory }},
	{"Class Section", func(r domain.FeeRecord) any { return r.ClassSection }},
	{"Month", func(r domain.FeeRecord) any { return r.Month }},
	{"Monthly Fee", func(r domain.FeeRecord) any { return r.MonthlyFee }},
	{"Annual Charges", func(r domain.FeeRecord) any { return r.AnnualCharges }},
	{"Admission Fee", func(r domain.FeeRecord) any { return r.AdmissionFee }},
	{"Received Amount", func(r domain.FeeRecord) any { return r.ReceivedAmount }},
	{"Payment Method", func(r domain.FeeRecord) any { return string(r.PaymentMethod) }},
	{"Date", func(r domain.FeeRecord) any { return r.Date.Format(time.DateOnly) }},
	{"Signature", func(r domain.FeeRecord) any { return r.Signature }},
	{"Entry Timestamp", func(r domain.FeeRecord) any { return r.EntryTimestamp.Format(time.DateTime) }},
	{"Academic Year", func(r domain.FeeRecord) any { return r.AcademicYear }},
}

// ExportService builds xlsx workbooks in the background and tracks their
// progress in the status repository.
type ExportService struct {
	reports  *ReportService
	statuses ExportStatusRepository
	storage  ExportStorage
	notifier ExportNotifier

	wg  sync.WaitGroup
	now func() time.Time
}

func NewExportService(reports *ReportService, statuses ExportStatusRepository, storage ExportStorage, notifier ExportNotifier) *ExportService {
	return &ExportService{
		reports:  reports,
		statuses: statuses,
		storage:  storage,
		notifier: notifier,
		now:      time.Now,
	}
}

// workbookBuilder fills f and returns the file name to store it under.
type workbookBuilder func(ctx context.Context, f *excelize.File, progress func(float64)) (string, error)

func (s *ExportService) StartRecordsExport(ctx context.Context, actor Actor, filter RecordsFilter) (string, error) {
	if !actor.IsAdmin {
		return "", domain.ErrForbidden
	}
	return s.start(ctx, actor, exportTypeRecords, filter, func(ctx context.Context, f *excelize.File, progress func(float64)) (string, error) {
		records, err := s.reports.Records(ctx, filter)
		if err != nil {
			return "", err
		}
		if err := writeRecordsSheet(f, records, progress); err != nil {
			return "", err
		}
		return fmt.Sprintf("fee_records_%s.xlsx", s.now().Format("20060102_150405")), nil
	})
}

func (s *ExportService) StartYearlyExport(ctx context.Context, actor Actor, id domain.Identity, academicYear string) (string, error) {
	if !actor.IsAdmin {
		return "", domain.ErrForbidden
	}
	if !domain.ValidAcademicYear(academicYear) {
		return "", fmt.Errorf("%w: invalid academic year %q", domain.ErrInvalidFeeRecord, academicYear)
	}
	filters := map[string]string{"id": id.String(), "academic_year": academicYear}
	return s.start(ctx, actor, exportTypeYearly, filters, func(ctx context.Context, f *excelize.File, progress func(float64)) (string, error) {
		rep, err := s.reports.YearlyReport(ctx, id, academicYear)
		if err != nil {
			return "", err
		}
		if err := writeYearlySheet(f, rep); err != nil {
			return "", err
		}
		progress(95)
		return fmt.Sprintf("yearly_%s_%s.xlsx", id, academicYear), nil
	})
}

func (s *ExportService) start(ctx context.Context, actor Actor, typ string, filters any, build workbookBuilder) (string, error) {
	status := domain.ExportStatus{
		Key:      "exports:" + uuid.NewString(),
		Type:     typ,
		Username: actor.Username,
		Filters:  filters,
		Created:  s.now(),
	}
	if err := s.statuses.Save(ctx, status); err != nil {
		return "", err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(context.Background(), status, build)
	}()

	log.Printf("[EXPORT] %s started %s export %s", actor.Username, typ, status.Key)
	return status.Key, nil
}

func (s *ExportService) run(ctx context.Context, status domain.ExportStatus, build workbookBuilder) {
	f := excelize.NewFile()
	defer f.Close()

	_ = f.SetDocProps(&excelize.DocProperties{Creator: status.Username})

	progress := func(p float64) {
		p = math.Round(p)
		if p >= 100 {
			p = 95 // 100 is reserved for a stored file
		}
		status.Progress = p
		if err := s.statuses.Save(ctx, status); err != nil {
			log.Printf("[EXPORT] %s: save progress: %v", status.Key, err)
		}
		if s.notifier != nil {
			_ = s.notifier.NotifyExportProgress(ctx, status.Username, status.Key, p, "generating")
		}
	}

	fileName, err := build(ctx, f, progress)
	if err != nil {
		s.fail(ctx, status, err)
		return
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		s.fail(ctx, status, fmt.Errorf("write workbook: %w", err))
		return
	}

	stored, err := s.storage.Save(ctx, fileName, buf.Bytes())
	if err != nil {
		s.fail(ctx, status, fmt.Errorf("store workbook: %w", err))
		return
	}
	url, err := s.storage.PublicURL(ctx, stored)
	if err != nil {
		s.fail(ctx, status, fmt.Errorf("file url: %w", err))
		return
	}

	status.Progress = 100
	status.FileURL = &url
	if err := s.statuses.Save(ctx, status); err != nil {
		log.Printf("[EXPORT] %s: save final status: %v", status.Key, err)
	}
	if s.notifier != nil {
		_ = s.notifier.NotifyExportComplete(ctx, status.Username, status.Key, url, fileName)
	}
	log.Printf("[EXPORT] %s finished: %s", status.Key, url)
}

func (s *ExportService) fail(ctx context.Context, status domain.ExportStatus, err error) {
	log.Printf("[EXPORT] %s failed: %v", status.Key, err)

	msg := err.Error()
	status.Error = &msg
	if saveErr := s.statuses.Save(ctx, status); saveErr != nil {
		log.Printf("[EXPORT] %s: save failed status: %v", status.Key, saveErr)
	}
	if s.notifier != nil {
		_ = s.notifier.NotifyExportFailed(ctx, status.Username, status.Key, msg)
	}
}

// Wait blocks until every running export has finished.
func (s *ExportService) Wait() {
	s.wg.Wait()
}

// Get returns an export owned by actor. Admins can see every export.
func (s *ExportService) Get(ctx context.Context, actor Actor, exportID string) (domain.ExportStatus, error) {
	st, err := s.statuses.Get(ctx, exportID)
	if err != nil {
		return domain.ExportStatus{}, err
	}
	if st.Username != actor.Username && !actor.IsAdmin {
		return domain.ExportStatus{}, domain.ErrExportNotFound
	}
	return st, nil
}

func (s *ExportService) List(ctx context.Context, actor Actor) ([]domain.ExportStatus, error) {
	return s.statuses.List(ctx, actor.Username)
}

func writeRecordsSheet(f *excelize.File, records []domain.FeeRecord, progress func(float64)) error {
	const sheet = "Fee Records"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return err
	}

	for i, col := range recordColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, col.Header); err != nil {
			return err
		}
	}

	var received int64
	total := len(records)
	for i, rec := range records {
		for c, col := range recordColumns {
			cell, _ := excelize.CoordinatesToCellName(c+1, i+2)
			if err := f.SetCellValue(sheet, cell, col.Value(rec)); err != nil {
				return err
			}
		}
		received += rec.ReceivedAmount

		if (i+1)%exportChunkSize == 0 || i == total-1 {
			progress(float64(i+1) / float64(total) * 100)
		}
	}

	// received total under its column
	labelCell, _ := excelize.CoordinatesToCellName(1, total+3)
	totalCell, _ := excelize.CoordinatesToCellName(9, total+3)
	if err := f.SetCellValue(sheet, labelCell, "Total"); err != nil {
		return err
	}
	return f.SetCellValue(sheet, totalCell, received)
}

func writeYearlySheet(f *excelize.File, rep YearlyReport) error {
	const sheet = "Yearly Report"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return err
	}

	rows := [][]any{
		{"Student", rep.StudentName},
		{"Class", rep.ClassCategory},
		{"ID", rep.ID.String()},
		{"Academic Year", rep.AcademicYear},
		{},
		{"Month", "Status", "Amount", "Date", "Payment Method"},
	}
	for _, m := range rep.Months {
		state := "Unpaid"
		if m.Paid {
			state = "Paid"
		}
		rows = append(rows, []any{m.Month, state, m.Amount, m.Date, string(m.PaymentMethod)})
	}
	rows = append(rows,
		[]any{},
		[]any{"Annual Charges", paidLabel(rep.AnnualPaid), rep.AnnualAmount},
		[]any{"Admission Fee", paidLabel(rep.AdmissionPaid), rep.AdmissionAmount},
		[]any{"Total Received", "", rep.TotalReceived},
	)

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func paidLabel(paid bool) string {
	if paid {
		return "Paid"
	}
	return "Unpaid"
}
