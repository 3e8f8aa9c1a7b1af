package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/hagwonmatch/internal/middleware"
	"github.com/hitoshi/hagwonmatch/internal/model"
	"github.com/hitoshi/hagwonmatch/internal/onboarding"
)

// OnboardingService はロール別プロフィール登録のインターフェース。
type OnboardingService interface {
	CompleteTeacher(ctx context.Context, form onboarding.TeacherForm) (*model.TeacherProfile, error)
	CompleteHagwon(ctx context.Context, form onboarding.HagwonForm) (*model.HagwonProfile, error)
}

// ProfileHandler はプロフィール登録のHTTPハンドラー。
type ProfileHandler struct {
	service OnboardingService
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service OnboardingService) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// Options はフォームの選択肢（科目・地域・国籍）を返す。
// GET /api/profile/options
func (h *ProfileHandler) Options(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"subjects":             onboarding.Subjects,
		"locations":            onboarding.Locations,
		"nationalities":        onboarding.Nationalities,
		"max_experience_years": onboarding.MaxExperienceYears,
	})
}

// CompleteTeacher は講師プロフィールを登録する。
// POST /api/profile/teacher
func (h *ProfileHandler) CompleteTeacher(w http.ResponseWriter, r *http.Request) {
	var form onboarding.TeacherForm
	if err := decodeJSON(w, r, &form); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	profile, err := h.service.CompleteTeacher(r.Context(), form)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTeacherProfileResponse(profile))
}

// CompleteHagwon は語学学校プロフィールを登録する。
// POST /api/profile/hagwon
func (h *ProfileHandler) CompleteHagwon(w http.ResponseWriter, r *http.Request) {
	var form onboarding.HagwonForm
	if err := decodeJSON(w, r, &form); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	profile, err := h.service.CompleteHagwon(r.Context(), form)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toHagwonProfileResponse(profile))
}
