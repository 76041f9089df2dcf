package domain

// Patient is the authenticated user's profile as returned by GET /patients/me/.
type Patient struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Gender         string `json:"gender"`
	DateOfBirth    string `json:"date_of_birth,omitempty"` // YYYY-MM-DD, empty when unknown
	ProfilePicture string `json:"profile_picture,omitempty"`
}

// ProfileUpdate is a partial update for PATCH /patients/me/. Empty fields are
// left unchanged by the backend.
type ProfileUpdate struct {
	Username    string `json:"username,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Gender      string `json:"gender,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
}

// Validate checks the fields that are set. Returns a map of field names to
// error messages, or nil if everything is valid.
func (u ProfileUpdate) Validate() map[string]string {
	errs := make(map[string]string)

	if u.Email != "" && !validEmail(u.Email) {
		errs["email"] = "must be a valid email address"
	}
	if len(u.Phone) > 15 {
		errs["phone"] = "too long (max 15)"
	}
	if len(u.Gender) > 10 {
		errs["gender"] = "too long (max 10)"
	}
	if u.DateOfBirth != "" {
		if _, err := ParseDate(u.DateOfBirth); err != nil {
			errs["date_of_birth"] = "must be YYYY-MM-DD"
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// IsEmpty reports whether the update changes nothing.
func (u ProfileUpdate) IsEmpty() bool {
	return u == ProfileUpdate{}
}
