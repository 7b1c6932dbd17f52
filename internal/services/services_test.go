package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medibook/internal/config"
	"medibook/internal/logging"
	"medibook/internal/metrics"
	"medibook/internal/models"
	"medibook/internal/repository"
	"medibook/internal/repository/memory"
	"medibook/internal/sessions"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:                 "access-secret",
		JWTRefreshSecret:          "refresh-secret",
		JWTExpirationMinutes:      15,
		JWTRefreshExpirationHours: 1,
	}
}

func seedDoctor(t *testing.T, store *memory.Store, username, name, speciality, password string) models.Doctor {
	t.Helper()
	doctor := models.Doctor{Username: username, Name: name, Speciality: speciality}
	if password != "" {
		hash, err := models.HashPassword(password)
		require.NoError(t, err)
		doctor.Password = hash
	}
	require.NoError(t, store.Doctors().Upsert(context.Background(), &doctor))
	return doctor
}

func TestDoctorServiceListExcludesPasswords(t *testing.T) {
	store := memory.NewStore()
	seedDoctor(t, store, "house", "Dr. House", "Diagnostics", "secret123")
	seedDoctor(t, store, "grey", "Dr. Grey", "Surgery", "secret456")

	svc := NewDoctorService(store.Doctors(), logging.Discard())
	doctors, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, doctors, 2)
	for _, d := range doctors {
		assert.Empty(t, d.Password)
	}
}

func TestDoctorServiceListEmpty(t *testing.T) {
	svc := NewDoctorService(memory.NewStore().Doctors(), nil)
	doctors, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doctors)
}

func TestCreateAppointmentDefaultsToPending(t *testing.T) {
	store := memory.NewStore()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	svc := NewAppointmentService(store.Appointments(), logging.Discard(), m)

	created, err := svc.Create(context.Background(), CreateAppointmentInput{
		DoctorID: "d1", UserID: "u1", Date: "2024-05-01", Time: "10:00",
	})
	require.NoError(t, err)
	assert.False(t, created.ID.IsZero())
	assert.Equal(t, models.StatusPending, created.Status)

	listed, err := svc.ListForUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)
	assert.Equal(t, models.StatusPending, listed[0].Status)
	// d1 is not a known doctor, so the join leaves the summary empty.
	assert.Nil(t, listed[0].Doctor)
}

func TestCreateAppointmentRejectsMissingFields(t *testing.T) {
	svc := NewAppointmentService(memory.NewStore().Appointments(), logging.Discard(), nil)

	cases := map[string]CreateAppointmentInput{
		"doctor": {UserID: "u1", Date: "2024-05-01", Time: "10:00"},
		"user":   {DoctorID: "d1", Date: "2024-05-01", Time: "10:00"},
		"date":   {DoctorID: "d1", UserID: "u1", Time: "10:00"},
		"time":   {DoctorID: "d1", UserID: "u1", Date: "2024-05-01", Time: "   "},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestCreateAppointmentRejectsUnknownStatus(t *testing.T) {
	svc := NewAppointmentService(memory.NewStore().Appointments(), logging.Discard(), nil)
	_, err := svc.Create(context.Background(), CreateAppointmentInput{
		DoctorID: "d1", UserID: "u1", Date: "2024-05-01", Time: "10:00", Status: "done",
	})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestCreateAppointmentAllowsOverlap(t *testing.T) {
	svc := NewAppointmentService(memory.NewStore().Appointments(), logging.Discard(), nil)
	in := CreateAppointmentInput{DoctorID: "d1", UserID: "u1", Date: "2024-05-01", Time: "10:00"}

	first, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	listed, err := svc.ListForUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestListForUserJoinsDoctorSummary(t *testing.T) {
	store := memory.NewStore()
	doctor := seedDoctor(t, store, "house", "Dr. House", "Diagnostics", "secret123")
	svc := NewAppointmentService(store.Appointments(), logging.Discard(), nil)

	_, err := svc.Create(context.Background(), CreateAppointmentInput{
		DoctorID: doctor.ID.String(), UserID: "u1", Date: "2024-05-01", Time: "10:00", Status: "confirmed",
	})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), CreateAppointmentInput{
		DoctorID: doctor.ID.String(), UserID: "u2", Date: "2024-05-02", Time: "11:00",
	})
	require.NoError(t, err)

	listed, err := svc.ListForUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.NotNil(t, listed[0].Doctor)
	assert.Equal(t, "Dr. House", listed[0].Doctor.Name)
	assert.Equal(t, "Diagnostics", listed[0].Doctor.Speciality)
	assert.Equal(t, models.StatusConfirmed, listed[0].Status)

	byDoctor, err := svc.ListForDoctor(context.Background(), doctor.ID.String())
	require.NoError(t, err)
	assert.Len(t, byDoctor, 2)
}

func TestListForUserRequiresID(t *testing.T) {
	svc := NewAppointmentService(memory.NewStore().Appointments(), logging.Discard(), nil)
	_, err := svc.ListForUser(context.Background(), " ")
	assert.ErrorIs(t, err, ErrValidation)

	listed, err := svc.ListForUser(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestSubscribeNotifiesInOrder(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	svc := NewAppointmentService(memory.NewStore().Appointments(), logging.Discard(), m)

	var calls []string
	unsubscribeA := svc.Subscribe(func(ctx context.Context, a models.Appointment) {
		calls = append(calls, "a:"+a.UserID.String())
	})
	svc.Subscribe(func(ctx context.Context, a models.Appointment) {
		calls = append(calls, "b:"+a.UserID.String())
	})

	_, err := svc.Create(context.Background(), CreateAppointmentInput{
		DoctorID: "d1", UserID: "u1", Date: "2024-05-01", Time: "10:00",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a:u1", "b:u1"}, calls)

	unsubscribeA()
	unsubscribeA()
	_, err = svc.Create(context.Background(), CreateAppointmentInput{
		DoctorID: "d1", UserID: "u2", Date: "2024-05-01", Time: "10:00",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a:u1", "b:u1", "b:u2"}, calls)

	_, err = svc.Create(context.Background(), CreateAppointmentInput{UserID: "u3"})
	require.Error(t, err)
	assert.Len(t, calls, 3)

	expected := `
# HELP medibook_appointments_created_total Total appointments booked
# TYPE medibook_appointments_created_total counter
medibook_appointments_created_total 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "medibook_appointments_created_total"))
}

func TestGetAndUpdateStatus(t *testing.T) {
	svc := NewAppointmentService(memory.NewStore().Appointments(), logging.Discard(), nil)
	created, err := svc.Create(context.Background(), CreateAppointmentInput{
		DoctorID: "d1", UserID: "u1", Date: "2024-05-01", Time: "10:00",
	})
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(context.Background(), created.ID.String(), "Cancelled")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, updated.Status)

	got, err := svc.Get(context.Background(), created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)

	_, err = svc.UpdateStatus(context.Background(), created.ID.String(), "archived")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = svc.UpdateStatus(context.Background(), created.ID.String(), "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.UpdateStatus(context.Background(), models.NewID().String(), "confirmed")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Get(context.Background(), models.NewID().String())
	assert.ErrorIs(t, err, ErrNotFound)
}

type failingAppointments struct {
	repository.AppointmentRepository
}

func (failingAppointments) Insert(ctx context.Context, a *models.Appointment) error {
	return errors.New("connection refused")
}

func TestCreateAppointmentStoreFailure(t *testing.T) {
	svc := NewAppointmentService(failingAppointments{}, logging.Discard(), nil)
	notified := false
	svc.Subscribe(func(ctx context.Context, a models.Appointment) { notified = true })

	_, err := svc.Create(context.Background(), CreateAppointmentInput{
		DoctorID: "d1", UserID: "u1", Date: "2024-05-01", Time: "10:00",
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.False(t, notified)
}

func newAuthService(t *testing.T) (*AuthService, *memory.Store, *prometheus.Registry) {
	t.Helper()
	store := memory.NewStore()
	reg := prometheus.NewRegistry()
	svc := NewAuthService(store.Users(), store.Doctors(), sessions.NewMemoryStore(), testConfig(), logging.Discard(), metrics.New(reg))
	return svc, store, reg
}

func TestSignupAndLogin(t *testing.T) {
	svc, _, reg := newAuthService(t)
	ctx := context.Background()

	signed, err := svc.Signup(ctx, SignupInput{Username: " alice ", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, "alice", signed.Identity.Username)
	assert.Equal(t, models.RoleUser, signed.Identity.Role)
	assert.NotEmpty(t, signed.Tokens.AccessToken)
	assert.NotEmpty(t, signed.Tokens.RefreshToken)

	_, err = svc.Signup(ctx, SignupInput{Username: "alice", Password: "another1"})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	logged, err := svc.Login(ctx, "alice", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, signed.Identity.ID, logged.Identity.ID)

	_, err = svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "bob", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	expected := `
# HELP medibook_auth_logins_total Login attempts by outcome
# TYPE medibook_auth_logins_total counter
medibook_auth_logins_total{outcome="failure"} 2
medibook_auth_logins_total{outcome="success"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "medibook_auth_logins_total"))
}

func TestSignupValidation(t *testing.T) {
	svc, _, _ := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, SignupInput{Username: "al", Password: "hunter22"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Signup(ctx, SignupInput{Username: "alice", Password: "short"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Signup(ctx, SignupInput{Username: "alice", Password: "hunter22", Role: "admin"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLoginFallsBackToDoctors(t *testing.T) {
	svc, store, _ := newAuthService(t)
	doctor := seedDoctor(t, store, "house", "Dr. House", "Diagnostics", "vicodin1")

	result, err := svc.Login(context.Background(), "house", "vicodin1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleDoctor, result.Identity.Role)
	assert.Equal(t, doctor.ID, result.Identity.ID)

	_, err = svc.Signup(context.Background(), SignupInput{Username: "house", Password: "hunter22"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestRefreshRotatesSession(t *testing.T) {
	svc, _, _ := newAuthService(t)
	ctx := context.Background()

	signed, err := svc.Signup(ctx, SignupInput{Username: "alice", Password: "hunter22"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, signed.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, signed.Identity, refreshed.Identity)
	assert.NotEqual(t, signed.Tokens.RefreshID, refreshed.Tokens.RefreshID)

	_, err = svc.Refresh(ctx, signed.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Refresh(ctx, signed.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestConcurrentRefreshHasOneWinner(t *testing.T) {
	svc, _, _ := newAuthService(t)
	ctx := context.Background()

	signed, err := svc.Signup(ctx, SignupInput{Username: "alice", Password: "hunter22"})
	require.NoError(t, err)

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Refresh(ctx, signed.Tokens.RefreshToken)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var wins int
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrInvalidToken)
	}
	assert.Equal(t, 1, wins)
}

func TestMeRereadsUserAccount(t *testing.T) {
	svc, store, _ := newAuthService(t)
	ctx := context.Background()

	signed, err := svc.Signup(ctx, SignupInput{Username: "alice", Password: "hunter22"})
	require.NoError(t, err)

	me, err := svc.Me(ctx, signed.Identity)
	require.NoError(t, err)
	assert.Equal(t, signed.Identity, me)

	upper := signed.Identity
	upper.ID = models.ID(strings.ToUpper(upper.ID.String()))
	me, err = svc.Me(ctx, upper)
	require.NoError(t, err)
	assert.Equal(t, signed.Identity.ID, me.ID)

	_, err = svc.Me(ctx, models.Identity{ID: models.NewID(), Username: "ghost", Role: models.RoleUser})
	assert.ErrorIs(t, err, ErrInvalidToken)

	doctor := seedDoctor(t, store, "house", "Dr. House", "Diagnostics", "vicodin1")
	me, err = svc.Me(ctx, doctor.Identity())
	require.NoError(t, err)
	assert.Equal(t, doctor.Identity(), me)
}

func TestLogoutRevokesSession(t *testing.T) {
	svc, _, _ := newAuthService(t)
	ctx := context.Background()

	signed, err := svc.Signup(ctx, SignupInput{Username: "alice", Password: "hunter22"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, signed.Tokens.RefreshToken))
	_, err = svc.Refresh(ctx, signed.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	assert.NoError(t, svc.Logout(ctx, "garbage"))
}
