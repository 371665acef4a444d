package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/auth"
	"github.com/hackgods/clinic-booking/internal/catalog"
)

type fakeBookings struct {
	appts     map[uuid.UUID]appointment.Appointment
	patients  map[string]appointment.Patient
	createErr error
	times     []string
	lastReq   appointment.CreateRequest
	lastList  appointment.Filter
	statsFrom time.Time
	statsTo   time.Time
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{
		appts:    map[uuid.UUID]appointment.Appointment{},
		patients: map[string]appointment.Patient{},
	}
}

func (f *fakeBookings) CreateAppointment(_ context.Context, req appointment.CreateRequest) (*appointment.Appointment, error) {
	f.lastReq = req
	if f.createErr != nil {
		return nil, f.createErr
	}
	p, ok := f.patients[req.PatientPhone]
	if !ok {
		p = appointment.Patient{ID: uuid.New(), Name: req.PatientName, Phone: req.PatientPhone}
		f.patients[req.PatientPhone] = p
	}
	a := appointment.Appointment{
		ID:          uuid.New(),
		PatientID:   p.ID,
		DoctorID:    req.DoctorID,
		TreatmentID: req.TreatmentID,
		StartAt:     req.StartAt,
		EndAt:       req.StartAt.Add(30 * time.Minute),
		Status:      appointment.StatusPending,
		Visit:       appointment.VisitFirst,
	}
	f.appts[a.ID] = a
	return &a, nil
}

func (f *fakeBookings) AvailableStartTimes(context.Context, uuid.UUID, uuid.UUID, time.Time) ([]string, error) {
	return f.times, nil
}

func (f *fakeBookings) GetAppointment(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	a, ok := f.appts[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	return &a, nil
}

func (f *fakeBookings) ListAppointments(_ context.Context, filter appointment.Filter) ([]appointment.Appointment, error) {
	f.lastList = filter
	var out []appointment.Appointment
	for _, a := range f.appts {
		if filter.PatientID != uuid.Nil && a.PatientID != filter.PatientID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeBookings) UpdateStatus(_ context.Context, id uuid.UUID, target appointment.AppointmentStatus) (*appointment.Appointment, error) {
	a, ok := f.appts[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	next, _, err := appointment.Transition(a.Status, target)
	if err != nil {
		return nil, err
	}
	a.Status = next
	f.appts[id] = a
	return &a, nil
}

func (f *fakeBookings) CancelByPatient(ctx context.Context, id, patientID uuid.UUID) (*appointment.Appointment, error) {
	a, ok := f.appts[id]
	if !ok || a.PatientID != patientID {
		return nil, appointment.ErrAppointmentNotFound
	}
	return f.UpdateStatus(ctx, id, appointment.StatusCanceled)
}

func (f *fakeBookings) AuthenticatePatient(_ context.Context, phone, name string) (*appointment.Patient, error) {
	p, ok := f.patients[phone]
	if !ok || p.Name != name {
		return nil, appointment.ErrPatientNotFound
	}
	return &p, nil
}

func (f *fakeBookings) Stats(_ context.Context, from, to time.Time) (*appointment.Stats, error) {
	f.statsFrom, f.statsTo = from, to
	return &appointment.Stats{
		StatusCounts:   []appointment.StatusCount{{Status: appointment.StatusPending, Count: len(f.appts)}},
		DailyCounts:    []appointment.DailyCount{},
		TimeSlotCounts: []appointment.TimeSlotCount{},
		VisitRatio:     appointment.VisitRatio{First: len(f.appts)},
	}, nil
}

func (f *fakeBookings) Policy() appointment.Policy {
	return appointment.DefaultPolicy()
}

type fakeCatalog struct {
	doctors    []catalog.Doctor
	treatments []catalog.Treatment
	slots      []catalog.CapacitySlot
	inUse      map[uuid.UUID]bool
	err        error
}

func (c *fakeCatalog) CreateDoctor(_ context.Context, d catalog.Doctor) (*catalog.Doctor, error) {
	if strings.TrimSpace(d.Name) == "" {
		return nil, catalog.ErrInvalidDoctor
	}
	d.ID = uuid.New()
	c.doctors = append(c.doctors, d)
	return &d, nil
}

func (c *fakeCatalog) UpdateDoctor(_ context.Context, id uuid.UUID, p catalog.DoctorPatch) (*catalog.Doctor, error) {
	for i := range c.doctors {
		if c.doctors[i].ID == id {
			if err := p.Apply(&c.doctors[i]); err != nil {
				return nil, err
			}
			return &c.doctors[i], nil
		}
	}
	return nil, catalog.ErrDoctorNotFound
}

func (c *fakeCatalog) GetDoctor(_ context.Context, id uuid.UUID) (*catalog.Doctor, error) {
	for _, d := range c.doctors {
		if d.ID == id {
			return &d, nil
		}
	}
	return nil, catalog.ErrDoctorNotFound
}

func (c *fakeCatalog) DeleteDoctor(_ context.Context, id uuid.UUID) error {
	for i, d := range c.doctors {
		if d.ID == id {
			if c.inUse[id] {
				return catalog.ErrDoctorInUse
			}
			c.doctors = append(c.doctors[:i], c.doctors[i+1:]...)
			return nil
		}
	}
	return catalog.ErrDoctorNotFound
}

func (c *fakeCatalog) ListDoctors(context.Context) ([]catalog.Doctor, error) {
	return c.doctors, c.err
}

func (c *fakeCatalog) CreateTreatment(_ context.Context, t catalog.Treatment) (*catalog.Treatment, error) {
	if t.DurationMinutes%catalog.SlotGranularity != 0 {
		return nil, catalog.ErrInvalidTreatment
	}
	t.ID = uuid.New()
	c.treatments = append(c.treatments, t)
	return &t, nil
}

func (c *fakeCatalog) UpdateTreatment(context.Context, uuid.UUID, catalog.TreatmentPatch) (*catalog.Treatment, error) {
	return nil, catalog.ErrTreatmentNotFound
}

func (c *fakeCatalog) GetTreatment(_ context.Context, id uuid.UUID) (*catalog.Treatment, error) {
	for _, t := range c.treatments {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, catalog.ErrTreatmentNotFound
}

func (c *fakeCatalog) DeleteTreatment(_ context.Context, id uuid.UUID) error {
	for i, t := range c.treatments {
		if t.ID == id {
			if c.inUse[id] {
				return catalog.ErrTreatmentInUse
			}
			c.treatments = append(c.treatments[:i], c.treatments[i+1:]...)
			return nil
		}
	}
	return catalog.ErrTreatmentNotFound
}

func (c *fakeCatalog) ListTreatments(context.Context) ([]catalog.Treatment, error) {
	return nil, c.err
}

func (c *fakeCatalog) CreateCapacitySlot(_ context.Context, s catalog.CapacitySlot) (*catalog.CapacitySlot, error) {
	for _, existing := range c.slots {
		if existing.Start == s.Start && existing.End == s.End {
			return nil, catalog.ErrDuplicateSlot
		}
	}
	s.ID = uuid.New()
	c.slots = append(c.slots, s)
	return &s, nil
}

func (c *fakeCatalog) UpdateCapacitySlot(_ context.Context, id uuid.UUID, p catalog.CapacitySlotPatch) (*catalog.CapacitySlot, error) {
	for i := range c.slots {
		if c.slots[i].ID != id {
			continue
		}
		next := c.slots[i]
		if err := p.Apply(&next); err != nil {
			return nil, err
		}
		for _, other := range c.slots {
			if other.ID != id && other.Start == next.Start && other.End == next.End {
				return nil, catalog.ErrDuplicateSlot
			}
		}
		c.slots[i] = next
		return &next, nil
	}
	return nil, catalog.ErrSlotNotFound
}

func (c *fakeCatalog) DeleteCapacitySlot(context.Context, uuid.UUID) error {
	return catalog.ErrSlotNotFound
}

func (c *fakeCatalog) ListCapacitySlots(context.Context) ([]catalog.CapacitySlot, error) {
	return c.slots, c.err
}

type testEnv struct {
	bookings *fakeBookings
	catalog  *fakeCatalog
	sessions *auth.Sessions
	admins   *auth.Admins
	mr       *miniredis.Miniredis
	patient  http.Handler
	admin    http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	env := &testEnv{
		bookings: newFakeBookings(),
		catalog:  &fakeCatalog{},
		sessions: auth.NewSessions(client, "session-secret", time.Hour),
		admins:   auth.NewAdmins("admin-secret", "admin", "pw", time.Hour),
		mr:       mr,
	}
	cfg := RouterConfig{
		Bookings: env.bookings,
		Catalog:  env.catalog,
		Sessions: env.sessions,
		Admins:   env.admins,
		Redis:    client,
		Metrics:  prometheus.NewRegistry(),
		Env:      "test",
	}
	env.patient = NewPatientRouter(cfg)
	env.admin = NewAdminRouter(cfg)
	return env
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func bookingBody(phone string) CreateAppointmentRequest {
	return CreateAppointmentRequest{
		PatientName:  "Jane",
		PatientPhone: phone,
		DoctorID:     uuid.NewString(),
		TreatmentID:  uuid.NewString(),
		StartAt:      "2026-03-02T10:00:00Z",
	}
}

func TestCreateAppointmentIssuesSession(t *testing.T) {
	env := newTestEnv(t)

	rec := do(t, env.patient, http.MethodPost, "/appointments", "", bookingBody("0101"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	resp := decode[CreateAppointmentResponse](t, rec)
	require.NotNil(t, resp.Appointment)
	assert.Equal(t, appointment.StatusPending, resp.Appointment.Status)
	require.NotEmpty(t, resp.SessionToken)

	patientID, err := env.sessions.Verify(context.Background(), resp.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, resp.Appointment.PatientID, patientID)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), env.bookings.lastReq.StartAt.UTC())
}

func TestCreateAppointmentErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{appointment.ErrInvalidGrid, http.StatusUnprocessableEntity, "invalid_grid"},
		{appointment.ErrDoctorNotFound, http.StatusNotFound, "doctor_not_found"},
		{appointment.ErrTreatmentNotFound, http.StatusNotFound, "treatment_not_found"},
		{appointment.ErrInvalidTreatmentDuration, http.StatusUnprocessableEntity, "invalid_treatment_duration"},
		{appointment.ErrOutsideOperatingHours, http.StatusUnprocessableEntity, "outside_operating_hours"},
		{appointment.ErrDoctorConflict, http.StatusConflict, "doctor_conflict"},
		{appointment.ErrCapacityExceeded, http.StatusConflict, "capacity_exceeded"},
		{appointment.ErrSlotBeingBooked, http.StatusConflict, "slot_being_booked"},
		{errors.New("connection reset"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			env := newTestEnv(t)
			env.bookings.createErr = tt.err

			rec := do(t, env.patient, http.MethodPost, "/appointments", "", bookingBody("0101"))
			assert.Equal(t, tt.status, rec.Code)
			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, tt.code, resp.Error)
			assert.NotContains(t, resp.Details, "connection reset")
		})
	}
}

func TestCreateAppointmentBadInput(t *testing.T) {
	env := newTestEnv(t)

	rec := do(t, env.patient, http.MethodPost, "/appointments", "", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request_body", decode[ErrorResponse](t, rec).Error)

	body := bookingBody("0101")
	body.DoctorID = "nope"
	rec = do(t, env.patient, http.MethodPost, "/appointments", "", body)
	assert.Equal(t, "invalid_doctor_id", decode[ErrorResponse](t, rec).Error)

	body = bookingBody("0101")
	body.StartAt = "2026-03-02 10:00"
	rec = do(t, env.patient, http.MethodPost, "/appointments", "", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_start_at", decode[ErrorResponse](t, rec).Error)
}

func TestAvailability(t *testing.T) {
	env := newTestEnv(t)
	env.bookings.times = []string{"09:00", "09:15"}

	path := "/availability?doctor_id=" + uuid.NewString() + "&treatment_id=" + uuid.NewString() + "&date=2026-03-02"
	rec := do(t, env.patient, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[AvailabilityResponse](t, rec)
	assert.Equal(t, []string{"09:00", "09:15"}, resp.Times)
	assert.Equal(t, "2026-03-02", resp.Date)

	env.bookings.times = []string{}
	rec = do(t, env.patient, http.MethodGet, path, "", nil)
	assert.JSONEq(t, `[]`, mustField(t, rec, "times"))

	rec = do(t, env.patient, http.MethodGet, "/availability?doctor_id="+uuid.NewString()+"&treatment_id="+uuid.NewString()+"&date=tomorrow", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_date", decode[ErrorResponse](t, rec).Error)
}

func mustField(t *testing.T, rec *httptest.ResponseRecorder, name string) string {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return string(m[name])
}

func TestPatientSessionFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := do(t, env.patient, http.MethodGet, "/me/appointments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	mine := decode[CreateAppointmentResponse](t, do(t, env.patient, http.MethodPost, "/appointments", "", bookingBody("0101")))
	theirs := decode[CreateAppointmentResponse](t, do(t, env.patient, http.MethodPost, "/appointments", "", bookingBody("0202")))

	rec = do(t, env.patient, http.MethodPost, "/auth/login", "", PatientLoginRequest{PatientPhone: "0101", PatientName: "Jane"})
	require.Equal(t, http.StatusOK, rec.Code)
	token := decode[TokenResponse](t, rec).Token

	rec = do(t, env.patient, http.MethodGet, "/me/appointments", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[AppointmentListResponse](t, rec)
	require.Len(t, list.Appointments, 1)
	assert.Equal(t, mine.Appointment.ID, list.Appointments[0].ID)

	rec = do(t, env.patient, http.MethodPost, "/me/appointments/"+theirs.Appointment.ID.String()+"/cancel", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "appointment_not_found", decode[ErrorResponse](t, rec).Error)

	rec = do(t, env.patient, http.MethodPost, "/me/appointments/"+mine.Appointment.ID.String()+"/cancel", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, appointment.StatusCanceled, decode[appointment.Appointment](t, rec).Status)

	rec = do(t, env.patient, http.MethodPost, "/auth/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, env.patient, http.MethodGet, "/me/appointments", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPatientLoginUnknown(t *testing.T) {
	env := newTestEnv(t)

	rec := do(t, env.patient, http.MethodPost, "/auth/login", "", PatientLoginRequest{PatientPhone: "0101", PatientName: "Jane"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "patient_not_found", decode[ErrorResponse](t, rec).Error)
}

func adminToken(t *testing.T, env *testEnv) string {
	t.Helper()
	rec := do(t, env.admin, http.MethodPost, "/admin/auth/token", "", AdminLoginRequest{Username: "admin", Password: "pw"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[TokenResponse](t, rec)
	require.NotNil(t, resp.ExpiresAt)
	return resp.Token
}

func TestAdminRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	rec := do(t, env.admin, http.MethodGet, "/admin/doctors", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, env.admin, http.MethodPost, "/admin/auth/token", "", AdminLoginRequest{Username: "admin", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// A patient session is not an admin token.
	patient := decode[CreateAppointmentResponse](t, do(t, env.patient, http.MethodPost, "/appointments", "", bookingBody("0101")))
	rec = do(t, env.admin, http.MethodGet, "/admin/doctors", patient.SessionToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, env.admin, http.MethodGet, "/admin/doctors", adminToken(t, env), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestAdminStatusUpdates(t *testing.T) {
	env := newTestEnv(t)
	token := adminToken(t, env)

	created := decode[CreateAppointmentResponse](t, do(t, env.patient, http.MethodPost, "/appointments", "", bookingBody("0101")))
	path := "/admin/appointments/" + created.Appointment.ID.String() + "/status"

	rec := do(t, env.admin, http.MethodPatch, path, token, UpdateStatusRequest{Status: "completed"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_status_transition", decode[ErrorResponse](t, rec).Error)

	rec = do(t, env.admin, http.MethodPatch, path, token, UpdateStatusRequest{Status: "no_show"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, env.admin, http.MethodPatch, path, token, UpdateStatusRequest{Status: "confirmed"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, appointment.StatusConfirmed, decode[appointment.Appointment](t, rec).Status)

	rec = do(t, env.admin, http.MethodGet, "/admin/appointments/"+created.Appointment.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, env.admin, http.MethodGet, "/admin/appointments/"+uuid.NewString(), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminListAppointmentsFilters(t *testing.T) {
	env := newTestEnv(t)
	token := adminToken(t, env)
	doctorID := uuid.New()

	rec := do(t, env.admin, http.MethodGet, "/admin/appointments?doctor_id="+doctorID.String()+"&date=2026-03-02&status=pending&limit=5&offset=10", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"appointments":[]}`, rec.Body.String())

	f := env.bookings.lastList
	assert.Equal(t, doctorID, f.DoctorID)
	assert.Equal(t, appointment.StatusPending, f.Status)
	assert.Equal(t, 5, f.Limit)
	assert.Equal(t, 10, f.Offset)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), f.From)
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), f.To)

	rec = do(t, env.admin, http.MethodGet, "/admin/appointments?limit=-1", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_limit", decode[ErrorResponse](t, rec).Error)
}

func TestAdminCatalog(t *testing.T) {
	env := newTestEnv(t)
	token := adminToken(t, env)

	rec := do(t, env.admin, http.MethodPost, "/admin/doctors", token, DoctorRequest{Name: "Dr. Kim", Department: "Dermatology"})
	require.Equal(t, http.StatusCreated, rec.Code)
	doctor := decode[catalog.Doctor](t, rec)

	rec = do(t, env.admin, http.MethodPatch, "/admin/doctors/"+doctor.ID.String(), token, map[string]string{"department": "Surgery"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Surgery", decode[catalog.Doctor](t, rec).Department)

	rec = do(t, env.admin, http.MethodPost, "/admin/doctors", token, DoctorRequest{Name: " "})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, env.admin, http.MethodPost, "/admin/treatments", token, TreatmentRequest{Name: "Laser", DurationMinutes: 45})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_treatment", decode[ErrorResponse](t, rec).Error)

	slot := map[string]any{"start_time": "10:00", "end_time": "10:30", "max_capacity": 2}
	rec = do(t, env.admin, http.MethodPost, "/admin/capacity-slots", token, slot)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "10:00", mustField(t, rec, "start_time")[1:6])

	rec = do(t, env.admin, http.MethodPost, "/admin/capacity-slots", token, slot)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, env.admin, http.MethodPost, "/admin/capacity-slots", token, map[string]any{"start_time": "25:00", "end_time": "10:30"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, env.admin, http.MethodDelete, "/admin/capacity-slots/"+uuid.NewString(), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminCatalogByID(t *testing.T) {
	env := newTestEnv(t)
	token := adminToken(t, env)

	rec := do(t, env.admin, http.MethodPost, "/admin/doctors", token, DoctorRequest{Name: "Dr. Kim", Department: "Dermatology"})
	require.Equal(t, http.StatusCreated, rec.Code)
	booked := decode[catalog.Doctor](t, rec)
	rec = do(t, env.admin, http.MethodPost, "/admin/doctors", token, DoctorRequest{Name: "Dr. Lee"})
	require.Equal(t, http.StatusCreated, rec.Code)
	idle := decode[catalog.Doctor](t, rec)
	env.catalog.inUse = map[uuid.UUID]bool{booked.ID: true}

	rec = do(t, env.admin, http.MethodGet, "/admin/doctors/"+booked.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Dr. Kim", decode[catalog.Doctor](t, rec).Name)

	rec = do(t, env.admin, http.MethodGet, "/admin/doctors/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, env.admin, http.MethodDelete, "/admin/doctors/"+booked.ID.String(), token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "doctor_in_use", decode[ErrorResponse](t, rec).Error)

	rec = do(t, env.admin, http.MethodDelete, "/admin/doctors/"+idle.ID.String(), token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, env.admin, http.MethodGet, "/admin/doctors/"+idle.ID.String(), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "doctor_not_found", decode[ErrorResponse](t, rec).Error)

	rec = do(t, env.admin, http.MethodPost, "/admin/treatments", token, TreatmentRequest{Name: "Checkup", DurationMinutes: 30})
	require.Equal(t, http.StatusCreated, rec.Code)
	tr := decode[catalog.Treatment](t, rec)

	rec = do(t, env.admin, http.MethodGet, "/admin/treatments/"+tr.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 30, decode[catalog.Treatment](t, rec).DurationMinutes)

	rec = do(t, env.admin, http.MethodDelete, "/admin/treatments/"+tr.ID.String(), token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, env.admin, http.MethodGet, "/admin/treatments/"+tr.ID.String(), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminUpdateCapacitySlot(t *testing.T) {
	env := newTestEnv(t)
	token := adminToken(t, env)

	rec := do(t, env.admin, http.MethodPost, "/admin/capacity-slots", token, map[string]any{"start_time": "10:00", "end_time": "10:30", "max_capacity": 1})
	require.Equal(t, http.StatusCreated, rec.Code)
	slot := decode[catalog.CapacitySlot](t, rec)
	rec = do(t, env.admin, http.MethodPost, "/admin/capacity-slots", token, map[string]any{"start_time": "10:30", "end_time": "11:00", "max_capacity": 1})
	require.Equal(t, http.StatusCreated, rec.Code)

	path := "/admin/capacity-slots/" + slot.ID.String()
	rec = do(t, env.admin, http.MethodPatch, path, token, map[string]any{"max_capacity": 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[catalog.CapacitySlot](t, rec)
	assert.Equal(t, 3, updated.MaxCapacity)
	assert.Equal(t, "10:00", updated.Start.String())
	assert.Equal(t, slot.ID, updated.ID)

	rec = do(t, env.admin, http.MethodPatch, path, token, map[string]any{"start_time": "10:30", "end_time": "11:00"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_capacity_slot", decode[ErrorResponse](t, rec).Error)

	rec = do(t, env.admin, http.MethodPatch, path, token, map[string]any{"end_time": "09:30"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, env.admin, http.MethodPatch, "/admin/capacity-slots/"+uuid.NewString(), token, map[string]any{"max_capacity": 2})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPatientCatalogListings(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.doctors = []catalog.Doctor{{ID: uuid.New(), Name: "Dr. Kim"}}

	rec := do(t, env.patient, http.MethodGet, "/doctors", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]catalog.Doctor](t, rec), 1)

	env.catalog.err = errors.New("db down")
	rec = do(t, env.patient, http.MethodGet, "/treatments", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := do(t, env.patient, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, env.patient, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[ReadinessResponse](t, rec).Status)

	env.mr.Close()
	rec = do(t, env.patient, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", decode[ReadinessResponse](t, rec).Status)

	rec = do(t, env.patient, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadinessPostgresDown(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	h := NewHealthHandler(mock, nil, "test", "")
	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decode[ReadinessResponse](t, rec)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "down", resp.Dependencies["postgres"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestIDPropagates(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	env.patient.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
}

func TestAdminStats(t *testing.T) {
	env := newTestEnv(t)
	token := adminToken(t, env)
	do(t, env.patient, http.MethodPost, "/appointments", "", bookingBody("0101"))

	rec := do(t, env.admin, http.MethodGet, "/admin/stats?date_from=2026-03-01&date_to=2026-03-31", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"status_counts": [{"status": "pending", "count": 1}],
		"daily_counts": [],
		"time_slot_counts": [],
		"visit_type_ratio": {"first": 1, "followup": 0}
	}`, rec.Body.String())
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), env.bookings.statsFrom)
	assert.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), env.bookings.statsTo)

	rec = do(t, env.admin, http.MethodGet, "/admin/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.bookings.statsFrom.IsZero())

	rec = do(t, env.admin, http.MethodGet, "/admin/stats?date_to=31-03-2026", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_date_to", decode[ErrorResponse](t, rec).Error)
}

func TestAdminListAppointmentsDateRange(t *testing.T) {
	env := newTestEnv(t)
	token := adminToken(t, env)
	patientID, treatmentID := uuid.New(), uuid.New()

	rec := do(t, env.admin, http.MethodGet, "/admin/appointments?date_from=2026-03-02&date_to=2026-03-04&patient_id="+
		patientID.String()+"&treatment_id="+treatmentID.String(), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	f := env.bookings.lastList
	assert.Equal(t, patientID, f.PatientID)
	assert.Equal(t, treatmentID, f.TreatmentID)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), f.From)
	assert.Equal(t, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), f.To)

	rec = do(t, env.admin, http.MethodGet, "/admin/appointments?treatment_id=x", token, nil)
	assert.Equal(t, "invalid_treatment_id", decode[ErrorResponse](t, rec).Error)
}

func TestDoctorsFilterByDepartment(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.doctors = []catalog.Doctor{
		{ID: uuid.New(), Name: "Dr. Kim", Department: "Dermatology"},
		{ID: uuid.New(), Name: "Dr. Lee", Department: "Laser Therapy"},
	}

	rec := do(t, env.patient, http.MethodGet, "/doctors?department=dermatology", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doctors := decode[[]catalog.Doctor](t, rec)
	require.Len(t, doctors, 1)
	assert.Equal(t, "Dr. Kim", doctors[0].Name)

	rec = do(t, env.patient, http.MethodGet, "/doctors?department=Oncology", "", nil)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
