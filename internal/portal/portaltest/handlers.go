package portaltest

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/aussiebroadwan/portal/internal/portal/domain"
	"github.com/aussiebroadwan/portal/pkg/apiclient"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/jwtx"
	"github.com/aussiebroadwan/portal/pkg/slogx"
	"github.com/google/uuid"
)

const maxPictureSize = 5 << 20

func writeDetail(w http.ResponseWriter, code int, detail string) {
	httpx.WriteJSON(w, code, map[string]string{"detail": detail})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed JSON body")
		return false
	}
	return true
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if !decodeBody(w, r, &creds) {
		return
	}

	b.mu.Lock()
	acct, ok := b.accounts[creds.Username]
	b.mu.Unlock()
	if !ok || acct.password != creds.Password {
		writeDetail(w, http.StatusUnauthorized, "No active account found with the given credentials")
		return
	}

	access, refresh, err := b.issue(acct.patient)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, apiclient.TokenPair{Access: access, Refresh: refresh})
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	errs := make(map[string][]string)
	for field, msg := range req.Validate() {
		errs[field] = []string{msg}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, taken := b.accounts[req.Username]; taken {
		errs["username"] = []string{"A user with that username already exists."}
	}
	if len(errs) > 0 {
		httpx.WriteJSON(w, http.StatusBadRequest, errs)
		return
	}

	acct := b.addAccount(req.Username, req.Email, req.Password)
	httpx.WriteJSON(w, http.StatusCreated, domain.RegisterResponse{
		ID:       acct.patient.ID,
		Username: acct.patient.Username,
		Email:    acct.patient.Email,
		Message:  "User registered successfully",
	})
}

func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.refreshCalls.Add(1)
	slogx.FromContext(r.Context()).Debug("refresh requested")

	if d := time.Duration(b.refreshDelay.Load()); d > 0 {
		time.Sleep(d)
	}

	var req struct {
		Refresh string `json:"refresh"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if b.failRefresh.Load() {
		httpx.WriteJSON(w, http.StatusUnauthorized, map[string]string{
			"detail": "Token is invalid or expired",
			"code":   "token_not_valid",
		})
		return
	}

	claims, err := b.signer.Verify(req.Refresh)
	if err != nil || claims.TokenType != jwtx.TokenTypeRefresh {
		httpx.WriteJSON(w, http.StatusUnauthorized, map[string]string{
			"detail": "Token is invalid or expired",
			"code":   "token_not_valid",
		})
		return
	}

	acct, ok := b.byID(claims.UserID)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "User not found")
		return
	}

	access, refresh, err := b.issue(acct.patient)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, apiclient.TokenPair{Access: access, Refresh: refresh})
}

// current returns the account behind the verified access token.
func (b *Backend) current(r *http.Request) (*account, bool) {
	id, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		return nil, false
	}
	return b.byID(id)
}

func (b *Backend) byID(id int64) (*account, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, acct := range b.accounts {
		if acct.patient.ID == id {
			return acct, true
		}
	}
	return nil, false
}

func (b *Backend) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	acct, ok := b.current(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	b.mu.Lock()
	p := acct.patient
	b.mu.Unlock()
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (b *Backend) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	acct, ok := b.current(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}

	if r.Header.Get("Content-Type") == "application/json" {
		var upd domain.ProfileUpdate
		if !decodeBody(w, r, &upd) {
			return
		}
		if errs := upd.Validate(); errs != nil {
			httpx.WriteJSON(w, http.StatusBadRequest, errs)
			return
		}

		b.mu.Lock()
		applyUpdate(&acct.patient, upd)
		p := acct.patient
		b.mu.Unlock()
		httpx.WriteJSON(w, http.StatusOK, p)
		return
	}

	if err := r.ParseMultipartForm(maxPictureSize); err != nil {
		writeDetail(w, http.StatusBadRequest, "expected multipart form")
		return
	}
	file, header, err := r.FormFile("profile_picture")
	if err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string][]string{
			"profile_picture": {"No file was submitted."},
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	b.mu.Lock()
	acct.picture = data
	acct.patient.ProfilePicture = b.Server.URL + "/media/profile_pictures/" + header.Filename
	p := acct.patient
	b.mu.Unlock()
	httpx.WriteJSON(w, http.StatusOK, p)
}

func applyUpdate(p *domain.Patient, u domain.ProfileUpdate) {
	if u.Username != "" {
		p.Username = u.Username
	}
	if u.Email != "" {
		p.Email = u.Email
	}
	if u.Phone != "" {
		p.Phone = u.Phone
	}
	if u.Gender != "" {
		p.Gender = u.Gender
	}
	if u.DateOfBirth != "" {
		p.DateOfBirth = u.DateOfBirth
	}
}

func (b *Backend) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	acct, ok := b.current(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	b.mu.Lock()
	list := append([]domain.Appointment{}, b.appointments[acct.patient.ID]...)
	b.mu.Unlock()
	httpx.WriteJSON(w, http.StatusOK, list)
}

func (b *Backend) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	acct, ok := b.current(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}

	var req domain.NewAppointment
	if !decodeBody(w, r, &req) {
		return
	}
	if errs := req.Validate(); errs != nil {
		out := make(map[string][]string, len(errs))
		for field, msg := range errs {
			out[field] = []string{msg}
		}
		httpx.WriteJSON(w, http.StatusBadRequest, out)
		return
	}

	appt := domain.Appointment{
		ID:         uuid.New(),
		DoctorName: req.DoctorName,
		Department: req.Department,
		Date:       req.Date,
		Time:       req.Time + ":00",
		Status:     domain.AppointmentPending,
		CreatedAt:  b.now().UTC(),
	}

	b.mu.Lock()
	b.appointments[acct.patient.ID] = append(b.appointments[acct.patient.ID], appt)
	b.mu.Unlock()

	httpx.WriteJSON(w, http.StatusCreated, appt)
}

func (b *Backend) handleUpdateAppointment(w http.ResponseWriter, r *http.Request) {
	acct, ok := b.current(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}

	var req struct {
		Status domain.AppointmentStatus `json:"status"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	switch req.Status {
	case domain.AppointmentPending, domain.AppointmentConfirmed, domain.AppointmentCancelled:
	default:
		httpx.WriteJSON(w, http.StatusBadRequest, map[string][]string{
			"status": {`"` + string(req.Status) + `" is not a valid choice.`},
		})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.appointments[acct.patient.ID]
	for i := range list {
		if list[i].ID == id {
			list[i].Status = req.Status
			httpx.WriteJSON(w, http.StatusOK, list[i])
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Not found.")
}

func (b *Backend) handleListPrescriptions(w http.ResponseWriter, r *http.Request) {
	acct, ok := b.current(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	b.mu.Lock()
	list := append([]domain.Prescription{}, b.prescription[acct.patient.ID]...)
	b.mu.Unlock()
	httpx.WriteJSON(w, http.StatusOK, list)
}

func (b *Backend) handleListRecords(w http.ResponseWriter, r *http.Request) {
	acct, ok := b.current(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	b.mu.Lock()
	list := append([]domain.MedicalRecord{}, b.records[acct.patient.ID]...)
	b.mu.Unlock()
	httpx.WriteJSON(w, http.StatusOK, list)
}

func (b *Backend) handleLastVisit(w http.ResponseWriter, r *http.Request) {
	acct, ok := b.current(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	b.mu.Lock()
	v, ok := b.lastVisit[acct.patient.ID]
	b.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "No past visits found.")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, v)
}

func (b *Backend) handleRecordCount(w http.ResponseWriter, r *http.Request) {
	acct, ok := b.current(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	b.mu.Lock()
	n := len(b.records[acct.patient.ID])
	b.mu.Unlock()
	httpx.WriteJSON(w, http.StatusOK, domain.RecordCount{Count: n})
}
