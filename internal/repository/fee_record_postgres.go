package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"fee-ledger/internal/domain"
)

const feeRecordsSchema = `
CREATE TABLE IF NOT EXISTS fee_records (
	seq             BIGSERIAL PRIMARY KEY,
	id              VARCHAR(8) NOT NULL,
	student_name    TEXT NOT NULL,
	class_category  TEXT NOT NULL,
	class_section   TEXT NOT NULL DEFAULT '',
	month           TEXT NOT NULL,
	monthly_fee     BIGINT NOT NULL DEFAULT 0,
	annual_charges  BIGINT NOT NULL DEFAULT 0,
	admission_fee   BIGINT NOT NULL DEFAULT 0,
	received_amount BIGINT NOT NULL DEFAULT 0,
	payment_method  TEXT NOT NULL,
	payment_date    DATE NOT NULL,
	signature       TEXT NOT NULL DEFAULT '',
	entry_timestamp TIMESTAMP NOT NULL,
	academic_year   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS fee_records_id_year_idx ON fee_records (id, academic_year);
`

const feeRecordSelect = `SELECT id, student_name, class_category, class_section, month, monthly_fee, annual_charges, admission_fee, received_amount, payment_method, payment_date, signature, entry_timestamp, academic_year FROM fee_records`

// PostgresFeeRecordRepository stores the ledger in a fee_records table. A batch
// is inserted in one transaction.
type PostgresFeeRecordRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresFeeRecordRepository(db *sql.DB) *PostgresFeeRecordRepository {
	return &PostgresFeeRecordRepository{db: db, now: time.Now}
}

func (r *PostgresFeeRecordRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, feeRecordsSchema); err != nil {
		return &domain.StorageError{Op: "migrate fee_records", Err: err}
	}
	return nil
}

func (r *PostgresFeeRecordRepository) AppendBatch(ctx context.Context, records []domain.FeeRecord) error {
	if len(records) == 0 {
		return nil
	}

	prepared, err := prepareBatch(records, r.now())
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.StorageError{Op: "begin fee records tx", Err: err}
	}
	defer func() {
		// no-op after a successful commit
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO fee_records (id, student_name, class_category, class_section, month, monthly_fee, annual_charges, admission_fee, received_amount, payment_method, payment_date, signature, entry_timestamp, academic_year) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`)
	if err != nil {
		return &domain.StorageError{Op: "prepare fee record insert", Err: err}
	}
	defer stmt.Close()

	for _, rec := range prepared {
		if _, err := stmt.ExecContext(ctx,
			rec.ID.String(),
			rec.StudentName,
			rec.ClassCategory,
			rec.ClassSection,
			rec.Month,
			rec.MonthlyFee,
			rec.AnnualCharges,
			rec.AdmissionFee,
			rec.ReceivedAmount,
			string(rec.PaymentMethod),
			rec.Date,
			rec.Signature,
			rec.EntryTimestamp,
			rec.AcademicYear,
		); err != nil {
			return &domain.StorageError{Op: "insert fee record", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &domain.StorageError{Op: "commit fee records", Err: err}
	}
	return nil
}

func (r *PostgresFeeRecordRepository) LoadAll(ctx context.Context) ([]domain.FeeRecord, error) {
	return r.query(ctx, feeRecordSelect+" ORDER BY seq")
}

func (r *PostgresFeeRecordRepository) QueryByIdentity(ctx context.Context, id domain.Identity) ([]domain.FeeRecord, error) {
	return r.query(ctx, feeRecordSelect+" WHERE id = $1 ORDER BY seq", id.String())
}

func (r *PostgresFeeRecordRepository) QueryByIdentityAndYear(ctx context.Context, id domain.Identity, academicYear string) ([]domain.FeeRecord, error) {
	return r.query(ctx, feeRecordSelect+" WHERE id = $1 AND academic_year = $2 ORDER BY seq", id.String(), academicYear)
}

func (r *PostgresFeeRecordRepository) query(ctx context.Context, query string, args ...any) ([]domain.FeeRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.StorageError{Op: "query fee records", Err: err}
	}
	defer rows.Close()

	out := []domain.FeeRecord{}
	line := 0
	for rows.Next() {
		line++
		var (
			rec    domain.FeeRecord
			id     string
			method string
		)
		if err := rows.Scan(
			&id,
			&rec.StudentName,
			&rec.ClassCategory,
			&rec.ClassSection,
			&rec.Month,
			&rec.MonthlyFee,
			&rec.AnnualCharges,
			&rec.AdmissionFee,
			&rec.ReceivedAmount,
			&method,
			&rec.Date,
			&rec.Signature,
			&rec.EntryTimestamp,
			&rec.AcademicYear,
		); err != nil {
			log.Printf("[STORE] skipping fee record row: %v", &domain.ParseError{Line: line, Err: err})
			continue
		}
		rec.ID = domain.Identity(id)
		rec.PaymentMethod = domain.PaymentMethod(method)
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "read fee records", Err: fmt.Errorf("rows: %w", err)}
	}
	return out, nil
}
