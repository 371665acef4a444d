package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-booking/internal/db"
)

var errLockOutsideTx = errors.New("transaction locks require InTx")

var dialect = goqu.Dialect("postgres")

const appointmentColumns = `id, patient_id, doctor_id, treatment_id, start_at, end_at, status, visit, memo, created_at, updated_at`

type PgRepository struct {
	db   db.DBTX
	pool db.Pool // nil when bound to a transaction
}

func NewPgRepository(pool db.Pool) *PgRepository {
	return &PgRepository{db: pool, pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Phone,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.TreatmentID,
		&a.StartAt,
		&a.EndAt,
		&a.Status,
		&a.Visit,
		&a.Memo,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Interface methods

func (r *PgRepository) InTx(ctx context.Context, fn func(tx Repository) error) error {
	if r.pool == nil {
		return fn(r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if err := fn(&PgRepository{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// LockKeys takes a Postgres advisory lock per key, held until the transaction ends.
func (r *PgRepository) LockKeys(ctx context.Context, keys []string) error {
	if r.pool != nil {
		return errLockOutsideTx
	}
	for _, key := range keys {
		if _, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			return fmt.Errorf("advisory lock %s: %w", key, err)
		}
	}
	return nil
}

func (r *PgRepository) ListActiveAppointments(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status <> 'canceled'
		  AND start_at < $2
		  AND end_at > $1
		ORDER BY start_at
	`, from, to)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *PgRepository) CountActivePatientAppointments(ctx context.Context, patientID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE patient_id = $1 AND status <> 'canceled'
	`, patientID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count patient appointments: %w", err)
	}
	return n, nil
}

func (r *PgRepository) GetPatientByPhone(ctx context.Context, phone string) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, phone, created_at, updated_at
		FROM patients
		WHERE phone = $1
	`, phone)
	return scanPatient(row)
}

// FindOrCreatePatient relies on the unique phone constraint: when a concurrent booking
// inserts the same phone first, the insert is a no-op and the winner's row is re-fetched.
func (r *PgRepository) FindOrCreatePatient(ctx context.Context, name, phone string) (*Patient, error) {
	p, err := r.GetPatientByPhone(ctx, phone)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrPatientNotFound) {
		return nil, fmt.Errorf("load patient: %w", err)
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO patients (id, name, phone, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (phone) DO NOTHING
		RETURNING id, name, phone, created_at, updated_at
	`, uuid.New(), name, phone)

	p, err = scanPatient(row)
	if errors.Is(err, ErrPatientNotFound) {
		return r.GetPatientByPhone(ctx, phone)
	}
	if err != nil {
		return nil, fmt.Errorf("insert patient: %w", err)
	}
	return p, nil
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	id := uuid.New()

	row := r.db.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, treatment_id, start_at, end_at, status, visit, memo, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, a.PatientID, a.DoctorID, a.TreatmentID, a.StartAt, a.EndAt, a.Status, a.Visit, a.Memo)

	created, err := scanAppointment(row)
	if err != nil {
		if db.IsPgCode(err, db.CodeExclusionViolation) {
			return nil, ErrDoctorConflict
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

// UpdateAppointmentStatus only applies when the row is still in from.
func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, f Filter) ([]Appointment, error) {
	eq := goqu.Ex{}
	if f.DoctorID != uuid.Nil {
		eq["doctor_id"] = f.DoctorID
	}
	if f.PatientID != uuid.Nil {
		eq["patient_id"] = f.PatientID
	}
	if f.TreatmentID != uuid.Nil {
		eq["treatment_id"] = f.TreatmentID
	}
	if f.Status != "" {
		eq["status"] = string(f.Status)
	}

	var conds []exp.Expression
	if len(eq) > 0 {
		conds = append(conds, eq)
	}
	if !f.From.IsZero() {
		conds = append(conds, goqu.C("start_at").Gte(f.From))
	}
	if !f.To.IsZero() {
		conds = append(conds, goqu.C("start_at").Lt(f.To))
	}

	ds := dialect.From("appointments").Prepared(true).
		Select(goqu.L(appointmentColumns)).
		Order(goqu.C("start_at").Asc()).
		Limit(uint(f.Limit)).
		Offset(uint(f.Offset))
	if len(conds) > 0 {
		ds = ds.Where(conds...)
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *PgRepository) ListAppointmentsBetween(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE ($1::timestamptz IS NULL OR start_at >= $1)
		  AND ($2::timestamptz IS NULL OR start_at < $2)
		ORDER BY start_at
	`, nullableTime(from), nullableTime(to))
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
