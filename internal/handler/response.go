package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/hagwonmatch/internal/authsync"
	"github.com/hitoshi/hagwonmatch/internal/model"
)

// maxBodyBytes はリクエストボディの上限サイズ。
const maxBodyBytes = 64 << 10

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON はリクエストボディをvにデコードする。未知のフィールドはエラーとする。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return model.NewValidationError("Invalid request body")
	}
	return nil
}

type userResponse struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	FullName         string         `json:"full_name,omitempty"`
	UserType         model.UserType `json:"user_type,omitempty"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type profileResponse struct {
	ID        string         `json:"id"`
	UserType  model.UserType `json:"user_type"`
	Email     string         `json:"email"`
	FullName  string         `json:"full_name"`
	AvatarURL string         `json:"avatar_url,omitempty"`
}

// identityResponse は同期モジュールが保持するログイン状態のレスポンス。
type identityResponse struct {
	Ready   bool             `json:"ready"`
	Phase   authsync.Phase   `json:"phase"`
	User    *userResponse    `json:"user"`
	Session *sessionResponse `json:"session"`
	Profile *profileResponse `json:"profile"`
}

func toIdentityResponse(state authsync.State, phase authsync.Phase) identityResponse {
	resp := identityResponse{Ready: state.Ready, Phase: phase}
	if u := state.User; u != nil {
		resp.User = &userResponse{
			ID:               u.ID,
			Email:            u.Email,
			FullName:         u.Metadata.FullName,
			UserType:         u.Metadata.UserType,
			EmailConfirmedAt: u.EmailConfirmedAt,
		}
	}
	if s := state.Session; s != nil {
		resp.Session = &sessionResponse{ID: s.ID, ExpiresAt: s.ExpiresAt}
	}
	if p := state.Profile; p != nil {
		resp.Profile = &profileResponse{
			ID:        p.ID,
			UserType:  p.UserType,
			Email:     p.Email,
			FullName:  p.FullName,
			AvatarURL: p.AvatarURL,
		}
	}
	return resp
}

type teacherProfileResponse struct {
	ID                   string   `json:"id"`
	Nationality          string   `json:"nationality"`
	LocationPreference   string   `json:"location_preference"`
	Bio                  string   `json:"bio"`
	Subjects             []string `json:"subjects"`
	ExperienceYears      *int     `json:"experience_years"`
	SalaryExpectationMin *int     `json:"salary_expectation_min"`
	SalaryExpectationMax *int     `json:"salary_expectation_max"`
	ProfileComplete      bool     `json:"profile_complete"`
}

func toTeacherProfileResponse(p *model.TeacherProfile) teacherProfileResponse {
	return teacherProfileResponse{
		ID:                   p.ID,
		Nationality:          p.Nationality,
		LocationPreference:   p.LocationPreference,
		Bio:                  p.Bio,
		Subjects:             p.Subjects,
		ExperienceYears:      p.ExperienceYears,
		SalaryExpectationMin: p.SalaryExpectationMin,
		SalaryExpectationMax: p.SalaryExpectationMax,
		ProfileComplete:      p.ProfileComplete,
	}
}

type hagwonProfileResponse struct {
	ID          string  `json:"id"`
	SchoolName  string  `json:"school_name"`
	Location    string  `json:"location"`
	Description string  `json:"description"`
	Website     *string `json:"website"`
}

func toHagwonProfileResponse(p *model.HagwonProfile) hagwonProfileResponse {
	return hagwonProfileResponse{
		ID:          p.ID,
		SchoolName:  p.SchoolName,
		Location:    p.Location,
		Description: p.Description,
		Website:     p.Website,
	}
}

type jobResponse struct {
	ID           string    `json:"id"`
	HagwonID     string    `json:"hagwon_id"`
	SchoolName   string    `json:"school_name,omitempty"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Subjects     []string  `json:"subjects"`
	Location     string    `json:"location"`
	SalaryMin    *int      `json:"salary_min"`
	SalaryMax    *int      `json:"salary_max"`
	Requirements string    `json:"requirements"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

func toJobResponse(j *model.Job) jobResponse {
	subjects := j.Subjects
	if subjects == nil {
		subjects = []string{}
	}
	return jobResponse{
		ID:           j.ID,
		HagwonID:     j.HagwonID,
		SchoolName:   j.SchoolName,
		Title:        j.Title,
		Description:  j.Description,
		Subjects:     subjects,
		Location:     j.Location,
		SalaryMin:    j.SalaryMin,
		SalaryMax:    j.SalaryMax,
		Requirements: j.Requirements,
		IsActive:     j.IsActive,
		CreatedAt:    j.CreatedAt,
	}
}

func toJobResponses(jobs []*model.Job) []jobResponse {
	out := make([]jobResponse, len(jobs))
	for i, j := range jobs {
		out[i] = toJobResponse(j)
	}
	return out
}

type applicationResponse struct {
	ID        string                  `json:"id"`
	TeacherID string                  `json:"teacher_id"`
	JobID     string                  `json:"job_id"`
	Message   string                  `json:"message"`
	Status    model.ApplicationStatus `json:"status"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

func toApplicationResponse(a *model.Application) applicationResponse {
	return applicationResponse{
		ID:        a.ID,
		TeacherID: a.TeacherID,
		JobID:     a.JobID,
		Message:   a.Message,
		Status:    a.Status,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func toApplicationResponses(apps []*model.Application) []applicationResponse {
	out := make([]applicationResponse, len(apps))
	for i, a := range apps {
		out[i] = toApplicationResponse(a)
	}
	return out
}
