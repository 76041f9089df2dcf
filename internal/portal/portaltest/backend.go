// Package portaltest runs an in-process imitation of the portal backend for
// tests. It issues real HS256 tokens, enforces them on every resource route and
// counts refresh calls so the client's refresh protocol can be observed.
package portaltest

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/portal/internal/portal/domain"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/jwtx"
	"github.com/aussiebroadwan/portal/pkg/slogx"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var errRevoked = errors.New("token has been revoked")

// Default account seeded into every backend.
const (
	Username = "jane"
	Email    = "jane@example.com"
	Password = "correct horse"
)

type account struct {
	password string
	patient  domain.Patient
	picture  []byte
}

// Backend is a fake portal API. The zero value is not usable; call New.
type Backend struct {
	Server *httptest.Server

	signer *jwtx.HS256
	now    func() time.Time

	refreshCalls atomic.Int32
	refreshDelay atomic.Int64 // nanoseconds
	failRefresh  atomic.Bool

	mu           sync.Mutex
	nextID       int64
	accounts     map[string]*account // by username
	revoked      map[string]bool     // jti
	issued       []string            // access token jtis
	appointments map[int64][]domain.Appointment
	prescription map[int64][]domain.Prescription
	records      map[int64][]domain.MedicalRecord
	lastVisit    map[int64]domain.LastVisit
}

// New starts a backend with the default account and stops it when t ends.
func New(t testing.TB) *Backend {
	t.Helper()

	signer, err := jwtx.NewHS256([]byte("portaltest-signing-secret-0123456789"))
	require.NoError(t, err)

	b := &Backend{
		signer:       signer,
		now:          time.Now,
		accounts:     make(map[string]*account),
		revoked:      make(map[string]bool),
		appointments: make(map[int64][]domain.Appointment),
		prescription: make(map[int64][]domain.Prescription),
		records:      make(map[int64][]domain.MedicalRecord),
		lastVisit:    make(map[int64]domain.LastVisit),
	}
	b.addAccount(Username, Email, Password)

	b.Server = httptest.NewServer(b.routes(slogx.Discard()))
	t.Cleanup(b.Server.Close)
	return b
}

// URL is the API base address.
func (b *Backend) URL() string { return b.Server.URL }

// RefreshCalls is the number of requests the refresh endpoint has received.
func (b *Backend) RefreshCalls() int { return int(b.refreshCalls.Load()) }

// SetRefreshDelay makes the refresh endpoint sleep before answering, which
// widens the window in which concurrent requests queue behind it.
func (b *Backend) SetRefreshDelay(d time.Duration) { b.refreshDelay.Store(int64(d)) }

// FailRefresh makes the refresh endpoint answer 401 for every token.
func (b *Backend) FailRefresh(fail bool) { b.failRefresh.Store(fail) }

// ExpireAccessTokens revokes every access token issued so far. The next
// resource request made with one of them gets a 401.
func (b *Backend) ExpireAccessTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, jti := range b.issued {
		b.revoked[jti] = true
	}
	b.issued = nil
}

// IssuePair mints a token pair for the default account without going through
// the login endpoint.
func (b *Backend) IssuePair(t testing.TB) (access, refresh string) {
	t.Helper()

	b.mu.Lock()
	acct := b.accounts[Username]
	b.mu.Unlock()

	access, refresh, err := b.issue(acct.patient)
	require.NoError(t, err)
	return access, refresh
}

// AddAppointment seeds an appointment for the default account.
func (b *Backend) AddAppointment(a domain.Appointment) domain.Appointment {
	b.mu.Lock()
	defer b.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = domain.AppointmentPending
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = b.now().UTC()
	}
	id := b.accounts[Username].patient.ID
	b.appointments[id] = append(b.appointments[id], a)
	return a
}

// AddRecord seeds a medical record for the default account.
func (b *Backend) AddRecord(r domain.MedicalRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.accounts[Username].patient.ID
	r.ID = int64(len(b.records[id]) + 1)
	b.records[id] = append(b.records[id], r)
}

// AddPrescription seeds a prescription for the default account.
func (b *Backend) AddPrescription(p domain.Prescription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.accounts[Username].patient.ID
	p.ID = int64(len(b.prescription[id]) + 1)
	b.prescription[id] = append(b.prescription[id], p)
}

// SetLastVisit seeds the last completed visit of the default account.
func (b *Backend) SetLastVisit(v domain.LastVisit) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastVisit[b.accounts[Username].patient.ID] = v
}

// Picture returns the last uploaded profile picture of the default account.
func (b *Backend) Picture() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accounts[Username].picture
}

func (b *Backend) addAccount(username, email, password string) *account {
	b.nextID++
	acct := &account{
		password: password,
		patient: domain.Patient{
			ID:       b.nextID,
			Username: username,
			Email:    email,
		},
	}
	b.accounts[username] = acct
	return acct
}

// issue mints an access and refresh token for p. Access tokens are tracked so
// they can be revoked later.
func (b *Backend) issue(p domain.Patient) (string, string, error) {
	now := b.now().UTC()

	accessClaims := jwtx.NewClaims(jwtx.TokenTypeAccess, p.ID, p.Username, jwtx.DefaultAccessTokenTTL, now)
	access, err := b.signer.Sign(accessClaims)
	if err != nil {
		return "", "", err
	}

	refresh, err := b.signer.Sign(jwtx.NewClaims(jwtx.TokenTypeRefresh, p.ID, p.Username, jwtx.DefaultRefreshTokenTTL, now))
	if err != nil {
		return "", "", err
	}

	b.mu.Lock()
	b.issued = append(b.issued, accessClaims.ID)
	b.mu.Unlock()

	return access, refresh, nil
}

func (b *Backend) accept(c jwtx.Claims) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.revoked[c.ID] {
		return errRevoked
	}
	return nil
}

func (b *Backend) routes(logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/token/", b.handleLogin)
	mux.HandleFunc("POST /auth/register/", b.handleRegister)
	mux.HandleFunc("POST /auth/token/refresh/", b.handleRefresh)

	authed := func(h http.HandlerFunc) http.Handler {
		return httpx.AuthnMiddleware(b.signer, b.accept)(h)
	}
	mux.Handle("GET /patients/me/", authed(b.handleGetProfile))
	mux.Handle("PATCH /patients/me/", authed(b.handleUpdateProfile))
	mux.Handle("GET /appointments/", authed(b.handleListAppointments))
	mux.Handle("POST /appointments/", authed(b.handleCreateAppointment))
	mux.Handle("PATCH /appointments/{id}/", authed(b.handleUpdateAppointment))
	mux.Handle("GET /prescriptions/", authed(b.handleListPrescriptions))
	mux.Handle("GET /records/", authed(b.handleListRecords))
	mux.Handle("GET /last-visit/", authed(b.handleLastVisit))
	mux.Handle("GET /record-count/", authed(b.handleRecordCount))

	return httpx.Chain(mux, slogx.HTTPMiddleware(logger))
}
