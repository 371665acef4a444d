package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/catalog"
)

// memStore is an in-memory Repository backend. Transactions are serialized and
// their writes are undone when fn fails.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	patients map[string]Patient
	appts    map[uuid.UUID]Appointment
	events   []EventLog
	locked   [][]string

	// beforeUpdate runs once, ahead of the next conditional status update.
	beforeUpdate func()
}

func newMemStore() *memStore {
	return &memStore{
		patients: map[string]Patient{},
		appts:    map[uuid.UUID]Appointment{},
	}
}

type memRepo struct {
	s    *memStore
	inTx bool
	undo *[]func()
}

func newMemRepo(s *memStore) *memRepo {
	return &memRepo{s: s}
}

func (r *memRepo) InTx(ctx context.Context, fn func(tx Repository) error) error {
	if r.inTx {
		return fn(r)
	}
	r.s.txMu.Lock()
	defer r.s.txMu.Unlock()

	var undo []func()
	if err := fn(&memRepo{s: r.s, inTx: true, undo: &undo}); err != nil {
		r.s.mu.Lock()
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		r.s.mu.Unlock()
		return err
	}
	return nil
}

// onRollback must be called with s.mu held.
func (r *memRepo) onRollback(fn func()) {
	if r.undo != nil {
		*r.undo = append(*r.undo, fn)
	}
}

func (r *memRepo) LockKeys(_ context.Context, keys []string) error {
	if !r.inTx {
		return errLockOutsideTx
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.locked = append(r.s.locked, append([]string(nil), keys...))
	return nil
}

func (r *memRepo) ListActiveAppointments(_ context.Context, from, to time.Time) ([]Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []Appointment
	for _, a := range r.s.appts {
		if a.Status.Active() && IntervalsOverlap(a.StartAt, a.EndAt, from, to) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (r *memRepo) CountActivePatientAppointments(_ context.Context, patientID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, a := range r.s.appts {
		if a.PatientID == patientID && a.Status.Active() {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) GetPatientByPhone(_ context.Context, phone string) (*Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.patients[phone]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *memRepo) FindOrCreatePatient(_ context.Context, name, phone string) (*Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if p, ok := r.s.patients[phone]; ok {
		return &p, nil
	}
	now := time.Now()
	p := Patient{ID: uuid.New(), Name: name, Phone: phone, CreatedAt: now, UpdatedAt: now}
	r.s.patients[phone] = p
	r.onRollback(func() { delete(r.s.patients, phone) })
	return &p, nil
}

func (r *memRepo) CreateAppointment(_ context.Context, a Appointment) (*Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, other := range r.s.appts {
		if other.DoctorID == a.DoctorID && other.Status.Active() && IntervalsOverlap(a.StartAt, a.EndAt, other.StartAt, other.EndAt) {
			return nil, ErrDoctorConflict
		}
	}
	now := time.Now()
	a.ID = uuid.New()
	a.CreatedAt, a.UpdatedAt = now, now
	r.s.appts[a.ID] = a
	r.onRollback(func() { delete(r.s.appts, a.ID) })
	return &a, nil
}

func (r *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *memRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	r.s.mu.Lock()
	hook := r.s.beforeUpdate
	r.s.beforeUpdate = nil
	r.s.mu.Unlock()
	if hook != nil {
		hook()
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	prev := a
	a.Status = to
	a.UpdatedAt = time.Now()
	r.s.appts[id] = a
	r.onRollback(func() { r.s.appts[id] = prev })
	return &a, nil
}

func (r *memRepo) ListAppointments(_ context.Context, f Filter) ([]Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []Appointment
	for _, a := range r.s.appts {
		switch {
		case f.DoctorID != uuid.Nil && a.DoctorID != f.DoctorID:
		case f.PatientID != uuid.Nil && a.PatientID != f.PatientID:
		case f.TreatmentID != uuid.Nil && a.TreatmentID != f.TreatmentID:
		case !f.From.IsZero() && a.StartAt.Before(f.From):
		case !f.To.IsZero() && !a.StartAt.Before(f.To):
		case f.Status != "" && a.Status != f.Status:
		default:
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })

	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *memRepo) ListAppointmentsBetween(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	return r.ListAppointments(ctx, Filter{From: from, To: to})
}

func (r *memRepo) InsertEvent(_ context.Context, ev EventLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := len(r.s.events)
	r.s.events = append(r.s.events, ev)
	r.onRollback(func() { r.s.events = r.s.events[:n] })
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.appts)
}

func (s *memStore) lockedKeys() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.locked...)
}

func (s *memStore) setStatus(id uuid.UUID, status AppointmentStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.appts[id]
	a.Status = status
	s.appts[id] = a
}

type memCatalog struct {
	doctors    map[uuid.UUID]catalog.Doctor
	treatments map[uuid.UUID]catalog.Treatment
	slots      []catalog.CapacitySlot
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		doctors:    map[uuid.UUID]catalog.Doctor{},
		treatments: map[uuid.UUID]catalog.Treatment{},
	}
}

func (c *memCatalog) addDoctor(name string) uuid.UUID {
	d := catalog.Doctor{ID: uuid.New(), Name: name, Department: "General"}
	c.doctors[d.ID] = d
	return d.ID
}

func (c *memCatalog) addTreatment(name string, minutes int) uuid.UUID {
	t := catalog.Treatment{ID: uuid.New(), Name: name, DurationMinutes: minutes}
	c.treatments[t.ID] = t
	return t.ID
}

func (c *memCatalog) GetDoctorByID(_ context.Context, id uuid.UUID) (*catalog.Doctor, error) {
	d, ok := c.doctors[id]
	if !ok {
		return nil, catalog.ErrDoctorNotFound
	}
	return &d, nil
}

func (c *memCatalog) GetTreatmentByID(_ context.Context, id uuid.UUID) (*catalog.Treatment, error) {
	t, ok := c.treatments[id]
	if !ok {
		return nil, catalog.ErrTreatmentNotFound
	}
	return &t, nil
}

func (c *memCatalog) ListCapacitySlots(context.Context) ([]catalog.CapacitySlot, error) {
	return c.slots, nil
}

func slot(start, end string, capacity int) catalog.CapacitySlot {
	return catalog.CapacitySlot{
		ID:          uuid.New(),
		Start:       catalog.MustParseTimeOfDay(start),
		End:         catalog.MustParseTimeOfDay(end),
		MaxCapacity: capacity,
	}
}
