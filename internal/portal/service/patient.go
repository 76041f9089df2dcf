package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/aussiebroadwan/portal/internal/portal/domain"
	"github.com/aussiebroadwan/portal/pkg/apiclient"
	"github.com/google/uuid"
)

// Resource endpoints.
const (
	ProfilePath       = "/patients/me/"
	AppointmentsPath  = "/appointments/"
	PrescriptionsPath = "/prescriptions/"
	RecordsPath       = "/records/"
	LastVisitPath     = "/last-visit/"
	RecordCountPath   = "/record-count/"
)

// ProfilePictureField is the multipart field the backend reads the picture from.
const ProfilePictureField = "profile_picture"

var ErrEmptyUpdate = errors.New("service: nothing to update")

// PatientService wraps the patient resources of the backend.
type PatientService struct {
	Client *apiclient.Client

	// Clock decides which appointments are upcoming. Defaults to time.Now.
	Clock func() time.Time
}

// Now returns the current time according to Clock.
func (s *PatientService) Now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func (s *PatientService) GetProfile(ctx context.Context) (domain.Patient, error) {
	var p domain.Patient
	if err := s.Client.Get(ctx, ProfilePath, &p); err != nil {
		return domain.Patient{}, err
	}
	return p, nil
}

// UpdateProfile applies a partial update and returns the stored profile.
func (s *PatientService) UpdateProfile(ctx context.Context, upd domain.ProfileUpdate) (domain.Patient, error) {
	if upd.IsEmpty() {
		return domain.Patient{}, ErrEmptyUpdate
	}
	if err := validationFromLocal(upd.Validate()); err != nil {
		return domain.Patient{}, err
	}

	var p domain.Patient
	if err := s.Client.Patch(ctx, ProfilePath, upd, &p); err != nil {
		return domain.Patient{}, validationFromHTTP(err)
	}
	return p, nil
}

// UploadProfilePicture sends r as the patient's profile picture.
func (s *PatientService) UploadProfilePicture(ctx context.Context, filename string, r io.Reader) (domain.Patient, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile(ProfilePictureField, filename)
	if err != nil {
		return domain.Patient{}, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return domain.Patient{}, fmt.Errorf("service: read picture: %w", err)
	}
	if err := mw.Close(); err != nil {
		return domain.Patient{}, err
	}

	var p domain.Patient
	if err := s.Client.Upload(ctx, http.MethodPatch, ProfilePath, &buf, mw.FormDataContentType(), &p); err != nil {
		return domain.Patient{}, validationFromHTTP(err)
	}
	return p, nil
}

func (s *PatientService) ListAppointments(ctx context.Context) ([]domain.Appointment, error) {
	var list []domain.Appointment
	if err := s.Client.Get(ctx, AppointmentsPath, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// CreateAppointment books a new appointment. The form is checked locally
// first; backend validation errors come back as a ValidationError.
func (s *PatientService) CreateAppointment(ctx context.Context, n domain.NewAppointment) (domain.Appointment, error) {
	if err := validationFromLocal(n.Validate()); err != nil {
		return domain.Appointment{}, err
	}

	var a domain.Appointment
	if err := s.Client.Post(ctx, AppointmentsPath, n, &a); err != nil {
		return domain.Appointment{}, validationFromHTTP(err)
	}
	return a, nil
}

// CancelAppointment marks the appointment as cancelled. Cancelled
// appointments stay visible in the list.
func (s *PatientService) CancelAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	body := struct {
		Status domain.AppointmentStatus `json:"status"`
	}{domain.AppointmentCancelled}

	var a domain.Appointment
	if err := s.Client.Patch(ctx, AppointmentsPath+id.String()+"/", body, &a); err != nil {
		return domain.Appointment{}, err
	}
	return a, nil
}

func (s *PatientService) ListPrescriptions(ctx context.Context) ([]domain.Prescription, error) {
	var list []domain.Prescription
	if err := s.Client.Get(ctx, PrescriptionsPath, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *PatientService) ListRecords(ctx context.Context) ([]domain.MedicalRecord, error) {
	var list []domain.MedicalRecord
	if err := s.Client.Get(ctx, RecordsPath, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// LastVisit returns the most recent visit. A 404 means there is none and is
// reported as a zero LastVisit.
func (s *PatientService) LastVisit(ctx context.Context) (domain.LastVisit, error) {
	var v domain.LastVisit
	err := s.Client.Get(ctx, LastVisitPath, &v)
	if apiclient.StatusCode(err) == http.StatusNotFound {
		return domain.LastVisit{}, nil
	}
	if err != nil {
		return domain.LastVisit{}, err
	}
	return v, nil
}

func (s *PatientService) RecordCount(ctx context.Context) (int, error) {
	var rc domain.RecordCount
	if err := s.Client.Get(ctx, RecordCountPath, &rc); err != nil {
		return 0, err
	}
	return rc.Count, nil
}

// Dashboard loads everything the landing page shows in parallel. If the
// access token has expired, all four requests queue behind a single refresh.
func (s *PatientService) Dashboard(ctx context.Context) (domain.Dashboard, error) {
	var (
		wg sync.WaitGroup

		d        domain.Dashboard
		appts    []domain.Appointment
		errs     [4]error
		loadErrs []error
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		d.Profile, errs[0] = s.GetProfile(ctx)
	}()
	go func() {
		defer wg.Done()
		appts, errs[1] = s.ListAppointments(ctx)
	}()
	go func() {
		defer wg.Done()
		d.LastVisit, errs[2] = s.LastVisit(ctx)
	}()
	go func() {
		defer wg.Done()
		d.RecordCount, errs[3] = s.RecordCount(ctx)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			loadErrs = append(loadErrs, err)
		}
	}
	if len(loadErrs) > 0 {
		return domain.Dashboard{}, errors.Join(loadErrs...)
	}

	d.Upcoming = Upcoming(appts, s.Now())
	return d, nil
}

// Upcoming filters appts down to active ones on or after now's calendar day,
// soonest first.
func Upcoming(appts []domain.Appointment, now time.Time) []domain.Appointment {
	out := make([]domain.Appointment, 0, len(appts))
	for _, a := range appts {
		if a.Upcoming(now) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out
}
