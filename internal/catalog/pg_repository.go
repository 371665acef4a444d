package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-booking/internal/db"
)

var dialect = goqu.Dialect("postgres")

var (
	doctorColumns    = []any{"id", "name", "department", "created_at", "updated_at"}
	treatmentColumns = []any{"id", "name", "duration_minutes", "price", "description", "created_at", "updated_at"}
	slotColumns      = []any{
		"id",
		goqu.L("to_char(start_time, 'HH24:MI')").As("start_time"),
		goqu.L("to_char(end_time, 'HH24:MI')").As("end_time"),
		"max_capacity",
		"created_at",
	}
)

// PgRepository builds SQL with goqu and runs it on pgx.
type PgRepository struct {
	db db.DBTX
}

func NewPgRepository(conn db.DBTX) *PgRepository {
	return &PgRepository{db: conn}
}

// Helpers

type sqlBuilder interface {
	ToSQL() (string, []any, error)
}

func build(ds sqlBuilder) (string, []any, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("build query: %w", err)
	}
	return query, args, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.Name, &d.Department, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanTreatment(row pgx.Row) (*Treatment, error) {
	var t Treatment
	err := row.Scan(&t.ID, &t.Name, &t.DurationMinutes, &t.Price, &t.Description, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTreatmentNotFound
		}
		return nil, err
	}
	return &t, nil
}

func scanSlot(row pgx.Row) (*CapacitySlot, error) {
	var s CapacitySlot
	var start, end string
	err := row.Scan(&s.ID, &start, &end, &s.MaxCapacity, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	if s.Start, err = ParseTimeOfDay(start); err != nil {
		return nil, err
	}
	if s.End, err = ParseTimeOfDay(end); err != nil {
		return nil, err
	}
	return &s, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()

	var result []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Doctors

func (r *PgRepository) CreateDoctor(ctx context.Context, d Doctor) (*Doctor, error) {
	now := time.Now().UTC()
	query, args, err := build(dialect.Insert("doctors").Prepared(true).
		Rows(goqu.Record{
			"id":         uuid.New(),
			"name":       d.Name,
			"department": d.Department,
			"created_at": now,
			"updated_at": now,
		}).
		Returning(doctorColumns...))
	if err != nil {
		return nil, err
	}
	return scanDoctor(r.db.QueryRow(ctx, query, args...))
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	query, args, err := build(dialect.From("doctors").Prepared(true).
		Select(doctorColumns...).
		Where(goqu.Ex{"id": id}))
	if err != nil {
		return nil, err
	}
	return scanDoctor(r.db.QueryRow(ctx, query, args...))
}

func (r *PgRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	query, args, err := build(dialect.From("doctors").Prepared(true).
		Select(doctorColumns...).
		Order(goqu.C("name").Asc()))
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanDoctor)
}

func (r *PgRepository) UpdateDoctor(ctx context.Context, id uuid.UUID, p DoctorPatch) (*Doctor, error) {
	record := goqu.Record{"updated_at": time.Now().UTC()}
	if p.Name != nil {
		record["name"] = *p.Name
	}
	if p.Department != nil {
		record["department"] = *p.Department
	}

	query, args, err := build(dialect.Update("doctors").Prepared(true).
		Set(record).
		Where(goqu.Ex{"id": id}).
		Returning(doctorColumns...))
	if err != nil {
		return nil, err
	}
	return scanDoctor(r.db.QueryRow(ctx, query, args...))
}

func (r *PgRepository) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	return r.deleteByID(ctx, "doctors", id, ErrDoctorNotFound, ErrDoctorInUse)
}

// Treatments

func (r *PgRepository) CreateTreatment(ctx context.Context, t Treatment) (*Treatment, error) {
	now := time.Now().UTC()
	query, args, err := build(dialect.Insert("treatments").Prepared(true).
		Rows(goqu.Record{
			"id":               uuid.New(),
			"name":             t.Name,
			"duration_minutes": t.DurationMinutes,
			"price":            t.Price,
			"description":      t.Description,
			"created_at":       now,
			"updated_at":       now,
		}).
		Returning(treatmentColumns...))
	if err != nil {
		return nil, err
	}
	return scanTreatment(r.db.QueryRow(ctx, query, args...))
}

func (r *PgRepository) GetTreatmentByID(ctx context.Context, id uuid.UUID) (*Treatment, error) {
	query, args, err := build(dialect.From("treatments").Prepared(true).
		Select(treatmentColumns...).
		Where(goqu.Ex{"id": id}))
	if err != nil {
		return nil, err
	}
	return scanTreatment(r.db.QueryRow(ctx, query, args...))
}

func (r *PgRepository) ListTreatments(ctx context.Context) ([]Treatment, error) {
	query, args, err := build(dialect.From("treatments").Prepared(true).
		Select(treatmentColumns...).
		Order(goqu.C("name").Asc()))
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTreatment)
}

func (r *PgRepository) UpdateTreatment(ctx context.Context, id uuid.UUID, p TreatmentPatch) (*Treatment, error) {
	record := goqu.Record{"updated_at": time.Now().UTC()}
	if p.Name != nil {
		record["name"] = *p.Name
	}
	if p.DurationMinutes != nil {
		record["duration_minutes"] = *p.DurationMinutes
	}
	if p.Price != nil {
		record["price"] = *p.Price
	}
	if p.Description != nil {
		record["description"] = *p.Description
	}

	query, args, err := build(dialect.Update("treatments").Prepared(true).
		Set(record).
		Where(goqu.Ex{"id": id}).
		Returning(treatmentColumns...))
	if err != nil {
		return nil, err
	}
	return scanTreatment(r.db.QueryRow(ctx, query, args...))
}

func (r *PgRepository) DeleteTreatment(ctx context.Context, id uuid.UUID) error {
	return r.deleteByID(ctx, "treatments", id, ErrTreatmentNotFound, ErrTreatmentInUse)
}

// Capacity slots

func (r *PgRepository) CreateCapacitySlot(ctx context.Context, s CapacitySlot) (*CapacitySlot, error) {
	query, args, err := build(dialect.Insert("capacity_slots").Prepared(true).
		Rows(goqu.Record{
			"id":           uuid.New(),
			"start_time":   s.Start.String(),
			"end_time":     s.End.String(),
			"max_capacity": s.MaxCapacity,
			"created_at":   time.Now().UTC(),
		}).
		Returning(slotColumns...))
	if err != nil {
		return nil, err
	}

	created, err := scanSlot(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if db.IsPgCode(err, db.CodeUniqueViolation) {
			return nil, ErrDuplicateSlot
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) GetCapacitySlotByID(ctx context.Context, id uuid.UUID) (*CapacitySlot, error) {
	query, args, err := build(dialect.From("capacity_slots").Prepared(true).
		Select(slotColumns...).
		Where(goqu.Ex{"id": id}))
	if err != nil {
		return nil, err
	}
	return scanSlot(r.db.QueryRow(ctx, query, args...))
}

func (r *PgRepository) UpdateCapacitySlot(ctx context.Context, id uuid.UUID, p CapacitySlotPatch) (*CapacitySlot, error) {
	record := goqu.Record{}
	if p.Start != nil {
		record["start_time"] = p.Start.String()
	}
	if p.End != nil {
		record["end_time"] = p.End.String()
	}
	if p.MaxCapacity != nil {
		record["max_capacity"] = *p.MaxCapacity
	}
	if len(record) == 0 {
		return r.GetCapacitySlotByID(ctx, id)
	}

	query, args, err := build(dialect.Update("capacity_slots").Prepared(true).
		Set(record).
		Where(goqu.Ex{"id": id}).
		Returning(slotColumns...))
	if err != nil {
		return nil, err
	}

	updated, err := scanSlot(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if db.IsPgCode(err, db.CodeUniqueViolation) {
			return nil, ErrDuplicateSlot
		}
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) DeleteCapacitySlot(ctx context.Context, id uuid.UUID) error {
	return r.deleteByID(ctx, "capacity_slots", id, ErrSlotNotFound, nil)
}

// deleteByID maps a missing row to notFound and, when inUse is set, a foreign key
// violation to inUse.
func (r *PgRepository) deleteByID(ctx context.Context, table string, id uuid.UUID, notFound, inUse error) error {
	query, args, err := build(dialect.Delete(table).Prepared(true).
		Where(goqu.Ex{"id": id}))
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		if inUse != nil && db.IsPgCode(err, db.CodeForeignKeyViolation) {
			return inUse
		}
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound
	}
	return nil
}

func (r *PgRepository) ListCapacitySlots(ctx context.Context) ([]CapacitySlot, error) {
	query, args, err := build(dialect.From("capacity_slots").Prepared(true).
		Select(slotColumns...).
		Order(goqu.C("start_time").Asc(), goqu.C("end_time").Asc()))
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSlot)
}
