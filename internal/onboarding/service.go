// Package onboarding はサインアップ直後のロール別プロフィール登録を提供する。
//
// 講師・語学学校それぞれのフォームは、ロールプロフィールの作成、
// profiles.full_name の更新（失敗しても続行）、同期モジュールのプロフィール再取得の順に処理する。
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/hagwonmatch/internal/authsync"
	"github.com/hitoshi/hagwonmatch/internal/model"
	"github.com/hitoshi/hagwonmatch/internal/repository"
	"github.com/hitoshi/hagwonmatch/internal/security"
)

// DefaultTeacherName はメタデータに氏名がない講師の表示名。
const DefaultTeacherName = "Teacher"

// Identity は現在のログインユーザーを提供し、プロフィールの再取得を受け付けるインターフェース。
type Identity interface {
	State() authsync.State
	RefreshProfile(ctx context.Context) error
}

// WebsiteRecorder はウェブサイト疎通確認の結果を記録するインターフェース。
type WebsiteRecorder interface {
	RecordWebsiteCheck(reachable bool)
}

// TeacherForm は講師プロフィールフォームの入力値。
type TeacherForm struct {
	Nationality          string   `json:"nationality"`
	LocationPreference   string   `json:"location_preference"`
	Bio                  string   `json:"bio"`
	Subjects             []string `json:"subjects"`
	ExperienceYears      *int     `json:"experience_years"`
	SalaryExpectationMin *int     `json:"salary_expectation_min"`
	SalaryExpectationMax *int     `json:"salary_expectation_max"`
}

// HagwonForm は語学学校プロフィールフォームの入力値。
type HagwonForm struct {
	SchoolName  string `json:"school_name"`
	Location    string `json:"location"`
	Description string `json:"description"`
	Website     string `json:"website"`
}

// Config はオンボーディングの動作設定。
type Config struct {
	// CheckWebsite がtrueの場合、ウェブサイトへの疎通確認を行う。
	CheckWebsite bool
}

// Service はロール別プロフィールの登録を行う。
type Service struct {
	identity  Identity
	profiles  repository.ProfileRepository
	teachers  repository.TeacherProfileRepository
	hagwons   repository.HagwonProfileRepository
	sanitizer security.TextSanitizer
	website   security.WebsiteValidator
	recorder  WebsiteRecorder
	config    Config
	logger    *slog.Logger
}

// NewService はServiceを生成する。websiteとrecorderはnilでもよい。
func NewService(
	identity Identity,
	profiles repository.ProfileRepository,
	teachers repository.TeacherProfileRepository,
	hagwons repository.HagwonProfileRepository,
	sanitizer security.TextSanitizer,
	website security.WebsiteValidator,
	recorder WebsiteRecorder,
	config Config,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		identity:  identity,
		profiles:  profiles,
		teachers:  teachers,
		hagwons:   hagwons,
		sanitizer: sanitizer,
		website:   website,
		recorder:  recorder,
		config:    config,
		logger:    logger,
	}
}

// CompleteTeacher は講師プロフィールを作成する。
func (s *Service) CompleteTeacher(ctx context.Context, form TeacherForm) (*model.TeacherProfile, error) {
	user, err := s.currentUser(model.UserTypeTeacher)
	if err != nil {
		return nil, err
	}
	if err := s.validateTeacher(&form); err != nil {
		return nil, err
	}

	profile := &model.TeacherProfile{
		ID:                   user.ID,
		Nationality:          form.Nationality,
		LocationPreference:   form.LocationPreference,
		Bio:                  form.Bio,
		Subjects:             form.Subjects,
		ExperienceYears:      form.ExperienceYears,
		SalaryExpectationMin: form.SalaryExpectationMin,
		SalaryExpectationMax: form.SalaryExpectationMax,
		ProfileComplete:      true,
	}
	if err := s.teachers.Create(ctx, profile); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewProfileExistsError()
		}
		return nil, fmt.Errorf("failed to create teacher profile: %w", err)
	}

	name := strings.TrimSpace(user.Metadata.FullName)
	if name == "" {
		name = DefaultTeacherName
	}
	s.finish(ctx, user.ID, name)

	return profile, nil
}

// CompleteHagwon は語学学校プロフィールを作成する。
func (s *Service) CompleteHagwon(ctx context.Context, form HagwonForm) (*model.HagwonProfile, error) {
	user, err := s.currentUser(model.UserTypeHagwon)
	if err != nil {
		return nil, err
	}
	website, err := s.validateHagwon(ctx, &form)
	if err != nil {
		return nil, err
	}

	profile := &model.HagwonProfile{
		ID:          user.ID,
		SchoolName:  form.SchoolName,
		Location:    form.Location,
		Description: form.Description,
		Website:     website,
	}
	if err := s.hagwons.Create(ctx, profile); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewProfileExistsError()
		}
		return nil, fmt.Errorf("failed to create hagwon profile: %w", err)
	}

	s.finish(ctx, user.ID, form.SchoolName)

	return profile, nil
}

// currentUser はログイン中のユーザーを返す。ロールが一致しない場合はエラー。
// キャッシュ済みプロフィールのロールを優先し、未取得の場合はユーザーメタデータを使う。
func (s *Service) currentUser(want model.UserType) (*model.User, error) {
	state := s.identity.State()
	if state.User == nil {
		return nil, model.NewNotAuthenticatedError()
	}
	role := state.User.Metadata.UserType
	if state.Profile != nil {
		role = state.Profile.UserType
	}
	if role != want {
		return nil, model.NewRoleMismatchError(want)
	}
	return state.User, nil
}

// finish は表示名を更新し、プロフィールを再取得する。
// 表示名の更新失敗はログのみ。
func (s *Service) finish(ctx context.Context, userID, fullName string) {
	if err := s.profiles.UpdateFullName(ctx, userID, fullName); err != nil {
		s.logger.Warn("failed to update profile name",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.identity.RefreshProfile(ctx); err != nil {
		s.logger.Warn("failed to refresh profile after onboarding",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) validateTeacher(form *TeacherForm) error {
	form.Bio = s.sanitizer.RichText(form.Bio)

	if !contains(Nationalities, form.Nationality) {
		return model.NewValidationError("Please select your nationality")
	}
	if !contains(Locations, form.LocationPreference) {
		return model.NewValidationError("Please select a preferred location")
	}
	if s.sanitizer.Text(form.Bio) == "" {
		return model.NewValidationError("Bio is required")
	}

	subjects := make([]string, 0, len(form.Subjects))
	seen := make(map[string]bool, len(form.Subjects))
	for _, subject := range form.Subjects {
		if !contains(Subjects, subject) {
			return model.NewValidationError(fmt.Sprintf("Unknown subject: %s", subject))
		}
		if !seen[subject] {
			seen[subject] = true
			subjects = append(subjects, subject)
		}
	}
	if len(subjects) == 0 {
		return model.NewValidationError("Select at least one subject")
	}
	form.Subjects = subjects

	if y := form.ExperienceYears; y != nil && (*y < 0 || *y > MaxExperienceYears) {
		return model.NewValidationError(fmt.Sprintf("Years of experience must be between 0 and %d", MaxExperienceYears))
	}
	if err := validateSalaryRange(form.SalaryExpectationMin, form.SalaryExpectationMax); err != nil {
		return err
	}
	return nil
}

func (s *Service) validateHagwon(ctx context.Context, form *HagwonForm) (*string, error) {
	form.SchoolName = s.sanitizer.Text(form.SchoolName)
	form.Description = s.sanitizer.RichText(form.Description)

	if form.SchoolName == "" {
		return nil, model.NewValidationError("School name is required")
	}
	if !contains(Locations, form.Location) {
		return nil, model.NewValidationError("Please select a location")
	}
	if s.sanitizer.Text(form.Description) == "" {
		return nil, model.NewValidationError("Description is required")
	}

	if strings.TrimSpace(form.Website) == "" {
		return nil, nil
	}
	if s.website == nil {
		website := strings.TrimSpace(form.Website)
		return &website, nil
	}
	website, err := s.website.Normalize(form.Website)
	if err != nil {
		return nil, model.NewValidationError(fmt.Sprintf("Website is not a valid URL: %s", form.Website))
	}
	if s.config.CheckWebsite {
		err := s.website.Check(ctx, website)
		if s.recorder != nil {
			s.recorder.RecordWebsiteCheck(err == nil)
		}
		if err != nil {
			// 到達できなくても正規化済みのURLで保存する
			s.logger.Warn("website check failed",
				slog.String("website", website),
				slog.String("error", err.Error()),
			)
		}
	}
	return &website, nil
}

// validateSalaryRange は希望給与の範囲を検証する。
func validateSalaryRange(lo, hi *int) error {
	if (lo != nil && *lo < 0) || (hi != nil && *hi < 0) {
		return model.NewValidationError("Salary must not be negative")
	}
	if lo != nil && hi != nil && *lo > *hi {
		return model.NewValidationError("Minimum salary must not exceed maximum salary")
	}
	return nil
}
