package repository

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"fee-ledger/internal/domain"
)

// Column names of the fee records table. Any compatible reader or writer
// relies on these exact names.
const (
	colID             = "ID"
	colStudentName    = "Student Name"
	colClassCategory  = "Class Category"
	colClassSection   = "Class Section"
	colMonth          = "Month"
	colMonthlyFee     = "Monthly Fee"
	colAnnualCharges  = "Annual Charges"
	colAdmissionFee   = "Admission Fee"
	colReceivedAmount = "Received Amount"
	colPaymentMethod  = "Payment Method"
	colDate           = "Date"
	colSignature      = "Signature"
	colEntryTimestamp = "Entry Timestamp"
	colAcademicYear   = "Academic Year"
)

var FeeRecordColumns = []string{
	colID, colStudentName, colClassCategory, colClassSection, colMonth,
	colMonthlyFee, colAnnualCharges, colAdmissionFee,
	colReceivedAmount, colPaymentMethod, colDate, colSignature,
	colEntryTimestamp, colAcademicYear,
}

const (
	RecordDateLayout      = "2006-01-02"
	RecordTimestampLayout = "2006-01-02 15:04:05"
)

// older files carry dates in display format
var (
	dateLayouts      = []string{RecordDateLayout, "02-01-2006", RecordTimestampLayout}
	timestampLayouts = []string{RecordTimestampLayout, "02-01-2006 15:04", time.RFC3339, RecordDateLayout}
)

// FeeRecordRepository is the append-only CSV fee ledger.
type FeeRecordRepository struct {
	path string
	mu   sync.RWMutex
	now  func() time.Time
}

func NewFeeRecordRepository(path string) *FeeRecordRepository {
	return &FeeRecordRepository{path: path, now: time.Now}
}

func (r *FeeRecordRepository) Path() string {
	return r.path
}

// AppendBatch persists all records or none of them.
func (r *FeeRecordRepository) AppendBatch(ctx context.Context, records []domain.FeeRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	prepared, err := prepareBatch(records, r.now())
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := os.ReadFile(r.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &domain.StorageError{Op: "read fee records", Err: err}
	}

	header := FeeRecordColumns
	var buf bytes.Buffer
	if len(bytes.TrimSpace(existing)) == 0 {
		w := csv.NewWriter(&buf)
		_ = w.Write(header)
		w.Flush()
	} else {
		header, err = readHeader(existing)
		if err != nil {
			return &domain.StorageError{Op: "read fee records header", Err: err}
		}
		if missing := missingColumns(header); len(missing) > 0 {
			return &domain.StorageError{Op: "append fee records", Err: fmt.Errorf("header is missing columns %q", missing)}
		}
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}

	w := csv.NewWriter(&buf)
	for _, rec := range prepared {
		if err := w.Write(encodeFeeRecord(rec, header)); err != nil {
			return &domain.StorageError{Op: "encode fee record", Err: err}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &domain.StorageError{Op: "encode fee records", Err: err}
	}

	if err := writeFileAtomic(r.path, buf.Bytes()); err != nil {
		return &domain.StorageError{Op: "append fee records", Err: err}
	}

	log.Printf("[STORE] appended %d fee record(s) to %s", len(prepared), r.path)
	return nil
}

// LoadAll returns every readable record in file order. A missing file is an
// empty ledger; rows that cannot be parsed are logged and skipped.
func (r *FeeRecordRepository) LoadAll(ctx context.Context) ([]domain.FeeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	f, err := os.Open(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []domain.FeeRecord{}, nil
		}
		return nil, &domain.StorageError{Op: "open fee records", Err: err}
	}
	defer f.Close()

	records, parseErrs, err := decodeFeeRecords(f)
	for _, pe := range parseErrs {
		log.Printf("[STORE] skipping fee record row: %v", pe)
	}
	if err != nil {
		return nil, &domain.StorageError{Op: "read fee records", Err: err}
	}
	return records, nil
}

func (r *FeeRecordRepository) QueryByIdentity(ctx context.Context, id domain.Identity) ([]domain.FeeRecord, error) {
	all, err := r.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	return filterRecords(all, func(rec domain.FeeRecord) bool { return rec.ID == id }), nil
}

func (r *FeeRecordRepository) QueryByIdentityAndYear(ctx context.Context, id domain.Identity, academicYear string) ([]domain.FeeRecord, error) {
	all, err := r.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	return filterRecords(all, func(rec domain.FeeRecord) bool {
		return rec.ID == id && rec.AcademicYear == academicYear
	}), nil
}

func filterRecords(all []domain.FeeRecord, keep func(domain.FeeRecord) bool) []domain.FeeRecord {
	out := []domain.FeeRecord{}
	for _, rec := range all {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// prepareBatch validates records and fills the write-time fields.
func prepareBatch(records []domain.FeeRecord, now time.Time) ([]domain.FeeRecord, error) {
	out := make([]domain.FeeRecord, len(records))
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if rec.AcademicYear == "" {
			rec.AcademicYear = domain.AcademicYearFor(rec.Date)
		}
		if rec.EntryTimestamp.IsZero() {
			rec.EntryTimestamp = now
		}
		out[i] = rec
	}
	return out, nil
}

func readHeader(data []byte) ([]string, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, err
	}
	return cleanHeader(header), nil
}

func cleanHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		out[i] = strings.TrimSpace(h)
	}
	return out
}

func missingColumns(header []string) []string {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	var missing []string
	for _, col := range FeeRecordColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	return missing
}

func encodeFeeRecord(rec domain.FeeRecord, header []string) []string {
	values := map[string]string{
		colID:             rec.ID.String(),
		colStudentName:    rec.StudentName,
		colClassCategory:  rec.ClassCategory,
		colClassSection:   rec.ClassSection,
		colMonth:          rec.Month,
		colMonthlyFee:     strconv.FormatInt(rec.MonthlyFee, 10),
		colAnnualCharges:  strconv.FormatInt(rec.AnnualCharges, 10),
		colAdmissionFee:   strconv.FormatInt(rec.AdmissionFee, 10),
		colReceivedAmount: strconv.FormatInt(rec.ReceivedAmount, 10),
		colPaymentMethod:  string(rec.PaymentMethod),
		colDate:           rec.Date.Format(RecordDateLayout),
		colSignature:      rec.Signature,
		colEntryTimestamp: rec.EntryTimestamp.Format(RecordTimestampLayout),
		colAcademicYear:   rec.AcademicYear,
	}
	row := make([]string, len(header))
	for i, col := range header {
		row[i] = values[col]
	}
	return row
}

// decodeFeeRecords reads a fee records table. Unparseable rows are returned as
// parse errors; err is set only when the reader itself fails.
func decodeFeeRecords(rd io.Reader) (records []domain.FeeRecord, parseErrs []error, err error) {
	records = []domain.FeeRecord{}

	cr := csv.NewReader(rd)
	cr.FieldsPerRecord = -1

	rawHeader, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return records, nil, nil
		}
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return records, []error{&domain.ParseError{Line: pe.Line, Err: err}}, nil
		}
		return nil, nil, err
	}
	header := cleanHeader(rawHeader)
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[h] = i
	}
	if _, ok := index[colID]; !ok {
		return records, []error{&domain.ParseError{Line: 1, Err: errors.New("header has no ID column")}}, nil
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				parseErrs = append(parseErrs, &domain.ParseError{Line: pe.Line, Err: pe.Err})
				continue
			}
			return nil, parseErrs, err
		}

		line, _ := cr.FieldPos(0)
		if blankRow(row) {
			continue
		}
		if len(row) != len(header) {
			parseErrs = append(parseErrs, &domain.ParseError{
				Line: line,
				Err:  fmt.Errorf("expected %d fields, got %d", len(header), len(row)),
			})
			continue
		}

		rec, err := decodeFeeRecord(index, row, line)
		if err != nil {
			parseErrs = append(parseErrs, err)
			continue
		}
		records = append(records, rec)
	}
	return records, parseErrs, nil
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func decodeFeeRecord(index map[string]int, row []string, line int) (domain.FeeRecord, error) {
	field := func(col string) string {
		if i, ok := index[col]; ok {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	rec := domain.FeeRecord{
		ID:            domain.Identity(strings.ToUpper(field(colID))),
		StudentName:   field(colStudentName),
		ClassCategory: field(colClassCategory),
		ClassSection:  field(colClassSection),
		Month:         strings.ToUpper(field(colMonth)),
		PaymentMethod: domain.PaymentMethod(field(colPaymentMethod)),
		Signature:     field(colSignature),
		AcademicYear:  field(colAcademicYear),
	}
	if rec.ID == "" {
		return domain.FeeRecord{}, &domain.ParseError{Line: line, Column: colID, Err: errors.New("empty")}
	}
	if rec.Month == "" {
		return domain.FeeRecord{}, &domain.ParseError{Line: line, Column: colMonth, Err: errors.New("empty")}
	}

	amounts := []struct {
		col string
		dst *int64
	}{
		{colMonthlyFee, &rec.MonthlyFee},
		{colAnnualCharges, &rec.AnnualCharges},
		{colAdmissionFee, &rec.AdmissionFee},
		{colReceivedAmount, &rec.ReceivedAmount},
	}
	for _, a := range amounts {
		v, err := parseAmount(field(a.col))
		if err != nil {
			return domain.FeeRecord{}, &domain.ParseError{Line: line, Column: a.col, Err: err}
		}
		*a.dst = v
	}

	d, err := parseTime(field(colDate), dateLayouts)
	if err != nil {
		return domain.FeeRecord{}, &domain.ParseError{Line: line, Column: colDate, Err: err}
	}
	rec.Date = d

	if ts := field(colEntryTimestamp); ts != "" {
		t, err := parseTime(ts, timestampLayouts)
		if err != nil {
			return domain.FeeRecord{}, &domain.ParseError{Line: line, Column: colEntryTimestamp, Err: err}
		}
		rec.EntryTimestamp = t
	}
	return rec, nil
}

// parseAmount accepts integers and integral floats ("2000.0"); empty and NaN cells are zero.
func parseAmount(s string) (int64, error) {
	if s == "" || strings.EqualFold(s, "nan") {
		return 0, nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		if v < 0 {
			return 0, fmt.Errorf("negative amount %d", v)
		}
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt64 {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return int64(f), nil
}

func parseTime(s string, layouts []string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty")
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
