// Package job は求人の掲載と応募のドメインロジックを提供する。
package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/hagwonmatch/internal/authsync"
	"github.com/hitoshi/hagwonmatch/internal/model"
	"github.com/hitoshi/hagwonmatch/internal/repository"
	"github.com/hitoshi/hagwonmatch/internal/security"
)

// DefaultBrowseLimit は求人一覧の既定の取得件数。
const DefaultBrowseLimit = 50

// maxBrowseLimit は求人一覧の取得件数の上限。
const maxBrowseLimit = 200

// Identity は現在のログインユーザーを提供するインターフェース。
type Identity interface {
	State() authsync.State
}

// Recorder は応募送信を記録するインターフェース。
type Recorder interface {
	RecordApplicationSubmitted()
}

// JobInput は求人作成フォームの入力値。
type JobInput struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Subjects     []string `json:"subjects"`
	Location     string   `json:"location"`
	SalaryMin    *int     `json:"salary_min"`
	SalaryMax    *int     `json:"salary_max"`
	Requirements string   `json:"requirements"`
}

// Service は求人と応募のサービス層。
type Service struct {
	identity     Identity
	jobs         repository.JobRepository
	applications repository.ApplicationRepository
	sanitizer    security.TextSanitizer
	recorder     Recorder
	dailyLimit   int
	logger       *slog.Logger
	now          func() time.Time
}

// NewService はServiceを生成する。dailyLimitが0以下の場合は応募数を制限しない。
func NewService(
	identity Identity,
	jobs repository.JobRepository,
	applications repository.ApplicationRepository,
	sanitizer security.TextSanitizer,
	recorder Recorder,
	dailyLimit int,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		identity:     identity,
		jobs:         jobs,
		applications: applications,
		sanitizer:    sanitizer,
		recorder:     recorder,
		dailyLimit:   dailyLimit,
		logger:       logger,
		now:          time.Now,
	}
}

// PostJob は語学学校の求人を掲載する。
func (s *Service) PostJob(ctx context.Context, input JobInput) (*model.Job, error) {
	user, err := s.actor(model.UserTypeHagwon)
	if err != nil {
		return nil, err
	}

	title := s.sanitizer.Text(input.Title)
	if title == "" {
		return nil, model.NewValidationError("Title is required")
	}
	if input.SalaryMin != nil && input.SalaryMax != nil && *input.SalaryMin > *input.SalaryMax {
		return nil, model.NewValidationError("Minimum salary must not exceed maximum salary")
	}

	now := s.now()
	j := &model.Job{
		ID:           uuid.New().String(),
		HagwonID:     user.ID,
		Title:        title,
		Description:  s.sanitizer.RichText(input.Description),
		Subjects:     trimAll(input.Subjects),
		Location:     s.sanitizer.Text(input.Location),
		SalaryMin:    input.SalaryMin,
		SalaryMax:    input.SalaryMax,
		Requirements: s.sanitizer.RichText(input.Requirements),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.jobs.Create(ctx, j); err != nil {
		return nil, fmt.Errorf("failed to post job: %w", err)
	}

	s.logger.Info("job posted",
		slog.String("job_id", j.ID),
		slog.String("hagwon_id", user.ID),
	)
	return j, nil
}

// ListOwnJobs はログイン中の語学学校の全求人を返す。
func (s *Service) ListOwnJobs(ctx context.Context) ([]*model.Job, error) {
	user, err := s.actor(model.UserTypeHagwon)
	if err != nil {
		return nil, err
	}
	jobs, err := s.jobs.ListByHagwon(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list own jobs: %w", err)
	}
	return jobs, nil
}

// SetJobActive は自校の求人の掲載状態を変更する。
func (s *Service) SetJobActive(ctx context.Context, jobID string, active bool) error {
	user, err := s.actor(model.UserTypeHagwon)
	if err != nil {
		return err
	}
	if err := s.jobs.SetActive(ctx, jobID, user.ID, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewJobNotFoundError(jobID)
		}
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

// BrowseJobs は掲載中の求人を新しい順に返す。ログインは不要。
func (s *Service) BrowseJobs(ctx context.Context, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = DefaultBrowseLimit
	}
	if limit > maxBrowseLimit {
		limit = maxBrowseLimit
	}
	jobs, err := s.jobs.ListActive(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to browse jobs: %w", err)
	}
	return jobs, nil
}

// GetJob は求人を1件返す。掲載終了の求人は所有者以外には見つからない扱いとする。
func (s *Service) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	j, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if j == nil {
		return nil, model.NewJobNotFoundError(jobID)
	}
	if !j.IsActive {
		state := s.identity.State()
		if state.User == nil || state.User.ID != j.HagwonID {
			return nil, model.NewJobNotFoundError(jobID)
		}
	}
	return j, nil
}

// Apply は講師として求人に応募する。
// 1日あたりの応募数（当日0時UTC以降）が上限に達している場合はエラーを返す。
func (s *Service) Apply(ctx context.Context, jobID, message string) (*model.Application, error) {
	user, err := s.actor(model.UserTypeTeacher)
	if err != nil {
		return nil, err
	}

	j, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if j == nil || !j.IsActive {
		return nil, model.NewJobNotFoundError(jobID)
	}

	now := s.now()
	if s.dailyLimit > 0 {
		count, err := s.applications.CountSince(ctx, user.ID, startOfDay(now))
		if err != nil {
			return nil, fmt.Errorf("failed to count applications: %w", err)
		}
		if count >= s.dailyLimit {
			return nil, model.NewDailyLimitError(s.dailyLimit)
		}
	}

	app := &model.Application{
		ID:        uuid.New().String(),
		TeacherID: user.ID,
		JobID:     jobID,
		Message:   s.sanitizer.RichText(message),
		Status:    model.ApplicationStatusSent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.applications.Create(ctx, app); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewDuplicateApplicationError()
		}
		return nil, fmt.Errorf("failed to submit application: %w", err)
	}
	if s.recorder != nil {
		s.recorder.RecordApplicationSubmitted()
	}

	s.logger.Info("application submitted",
		slog.String("application_id", app.ID),
		slog.String("job_id", jobID),
		slog.String("teacher_id", user.ID),
	)
	return app, nil
}

// ListOwnApplications はログイン中の講師の応募一覧を返す。
func (s *Service) ListOwnApplications(ctx context.Context) ([]*model.Application, error) {
	user, err := s.actor(model.UserTypeTeacher)
	if err != nil {
		return nil, err
	}
	apps, err := s.applications.ListByTeacher(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	return apps, nil
}

// ListApplicationsForJob は自校の求人への応募一覧を返す。
func (s *Service) ListApplicationsForJob(ctx context.Context, jobID string) ([]*model.Application, error) {
	if _, err := s.ownedJob(ctx, jobID); err != nil {
		return nil, err
	}
	apps, err := s.applications.ListByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	return apps, nil
}

// UpdateApplicationStatus は自校の求人への応募のステータスを更新する。
func (s *Service) UpdateApplicationStatus(ctx context.Context, applicationID string, status model.ApplicationStatus) error {
	if !status.Valid() {
		return model.NewValidationError(fmt.Sprintf("Invalid application status: %s", status))
	}
	if _, err := s.actor(model.UserTypeHagwon); err != nil {
		return err
	}

	app, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		return fmt.Errorf("failed to get application: %w", err)
	}
	if app == nil {
		return model.NewApplicationNotFoundError(applicationID)
	}
	if _, err := s.ownedJob(ctx, app.JobID); err != nil {
		// 他校の求人への応募は存在しないものとして扱う
		if apiErr, ok := model.AsAPIError(err); ok && apiErr.Code == model.ErrCodeJobNotFound {
			return model.NewApplicationNotFoundError(applicationID)
		}
		return err
	}

	if err := s.applications.UpdateStatus(ctx, applicationID, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewApplicationNotFoundError(applicationID)
		}
		return fmt.Errorf("failed to update application status: %w", err)
	}
	return nil
}

// Recommend は講師向けの推薦求人を返す。
// 推薦ロジックは未実装で、常にmodel.ErrNotImplementedを返す。
func (s *Service) Recommend(ctx context.Context, teacherID string, limit int) ([]model.JobRecommendation, error) {
	return nil, model.ErrNotImplemented
}

// actor はログイン中のユーザーを返す。ロールが一致しない場合はエラー。
func (s *Service) actor(want model.UserType) (*model.User, error) {
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

// ownedJob はログイン中の語学学校が所有する求人を返す。
func (s *Service) ownedJob(ctx context.Context, jobID string) (*model.Job, error) {
	user, err := s.actor(model.UserTypeHagwon)
	if err != nil {
		return nil, err
	}
	j, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if j == nil || j.HagwonID != user.ID {
		return nil, model.NewJobNotFoundError(jobID)
	}
	return j, nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
