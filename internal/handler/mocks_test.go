package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/hagwonmatch/internal/authform"
	"github.com/hitoshi/hagwonmatch/internal/authsync"
	"github.com/hitoshi/hagwonmatch/internal/job"
	"github.com/hitoshi/hagwonmatch/internal/middleware"
	"github.com/hitoshi/hagwonmatch/internal/model"
	"github.com/hitoshi/hagwonmatch/internal/onboarding"
)

// --- モック定義 ---

type mockSession struct {
	state        authsync.State
	signOutErr   error
	refreshErr   error
	refreshCalls int
	signOutCalls int
	waitCalls    int
}

func (m *mockSession) State() authsync.State { return m.state }

func (m *mockSession) Phase() authsync.Phase {
	switch {
	case !m.state.Ready:
		return authsync.PhaseLoading
	case m.state.User != nil:
		return authsync.PhaseAuthenticated
	default:
		return authsync.PhaseAnonymous
	}
}

func (m *mockSession) WaitReady(ctx context.Context) error {
	m.waitCalls++
	return nil
}

func (m *mockSession) SignOut(ctx context.Context) error {
	m.signOutCalls++
	m.state = authsync.State{Ready: true}
	return m.signOutErr
}

func (m *mockSession) RefreshProfile(ctx context.Context) error {
	m.refreshCalls++
	return m.refreshErr
}

func (m *mockSession) signIn(id string, role model.UserType) {
	user := &model.User{ID: id, Email: id + "@example.com", Metadata: model.UserMetadata{UserType: role}}
	m.state = authsync.State{
		User:    user,
		Session: &model.Session{ID: "s-" + id, UserID: id, User: user},
		Profile: &model.Profile{ID: id, UserType: role, Email: user.Email},
		Ready:   true,
	}
}

type mockForms struct {
	submitFn func(ctx context.Context, sub authform.Submission) *authform.Result
}

func (m *mockForms) Submit(ctx context.Context, sub authform.Submission) *authform.Result {
	return m.submitFn(ctx, sub)
}

type mockOnboarding struct {
	teacherFn func(ctx context.Context, form onboarding.TeacherForm) (*model.TeacherProfile, error)
	hagwonFn  func(ctx context.Context, form onboarding.HagwonForm) (*model.HagwonProfile, error)
}

func (m *mockOnboarding) CompleteTeacher(ctx context.Context, form onboarding.TeacherForm) (*model.TeacherProfile, error) {
	return m.teacherFn(ctx, form)
}

func (m *mockOnboarding) CompleteHagwon(ctx context.Context, form onboarding.HagwonForm) (*model.HagwonProfile, error) {
	return m.hagwonFn(ctx, form)
}

var errNotStubbed = errors.New("not stubbed")

type mockJobs struct {
	postJobFn      func(ctx context.Context, input job.JobInput) (*model.Job, error)
	listOwnJobsFn  func(ctx context.Context) ([]*model.Job, error)
	setJobActiveFn func(ctx context.Context, jobID string, active bool) error
	browseJobsFn   func(ctx context.Context, limit int) ([]*model.Job, error)
	getJobFn       func(ctx context.Context, jobID string) (*model.Job, error)
	applyFn        func(ctx context.Context, jobID, message string) (*model.Application, error)
	listOwnAppsFn  func(ctx context.Context) ([]*model.Application, error)
	listForJobFn   func(ctx context.Context, jobID string) ([]*model.Application, error)
	updateStatusFn func(ctx context.Context, applicationID string, status model.ApplicationStatus) error
}

func (m *mockJobs) PostJob(ctx context.Context, input job.JobInput) (*model.Job, error) {
	if m.postJobFn == nil {
		return nil, errNotStubbed
	}
	return m.postJobFn(ctx, input)
}

func (m *mockJobs) ListOwnJobs(ctx context.Context) ([]*model.Job, error) {
	if m.listOwnJobsFn == nil {
		return nil, errNotStubbed
	}
	return m.listOwnJobsFn(ctx)
}

func (m *mockJobs) SetJobActive(ctx context.Context, jobID string, active bool) error {
	if m.setJobActiveFn == nil {
		return errNotStubbed
	}
	return m.setJobActiveFn(ctx, jobID, active)
}

func (m *mockJobs) BrowseJobs(ctx context.Context, limit int) ([]*model.Job, error) {
	if m.browseJobsFn == nil {
		return nil, errNotStubbed
	}
	return m.browseJobsFn(ctx, limit)
}

func (m *mockJobs) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	if m.getJobFn == nil {
		return nil, errNotStubbed
	}
	return m.getJobFn(ctx, jobID)
}

func (m *mockJobs) Apply(ctx context.Context, jobID, message string) (*model.Application, error) {
	if m.applyFn == nil {
		return nil, errNotStubbed
	}
	return m.applyFn(ctx, jobID, message)
}

func (m *mockJobs) ListOwnApplications(ctx context.Context) ([]*model.Application, error) {
	if m.listOwnAppsFn == nil {
		return nil, errNotStubbed
	}
	return m.listOwnAppsFn(ctx)
}

func (m *mockJobs) ListApplicationsForJob(ctx context.Context, jobID string) ([]*model.Application, error) {
	if m.listForJobFn == nil {
		return nil, errNotStubbed
	}
	return m.listForJobFn(ctx, jobID)
}

func (m *mockJobs) UpdateApplicationStatus(ctx context.Context, applicationID string, status model.ApplicationStatus) error {
	if m.updateStatusFn == nil {
		return errNotStubbed
	}
	return m.updateStatusFn(ctx, applicationID, status)
}

func (m *mockJobs) Recommend(ctx context.Context, teacherID string, limit int) ([]model.JobRecommendation, error) {
	return nil, model.ErrNotImplemented
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error { return m.err }

// --- ヘルパー ---

type testServer struct {
	session    *mockSession
	forms      *mockForms
	onboarding *mockOnboarding
	jobs       *mockJobs
	health     *mockHealthChecker
	router     http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		session:    &mockSession{state: authsync.State{Ready: true}},
		forms:      &mockForms{},
		onboarding: &mockOnboarding{},
		jobs:       &mockJobs{},
		health:     &mockHealthChecker{},
	}
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	ts.router = NewRouter(&RouterDeps{
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		Session:           ts.session,
		Forms:             ts.forms,
		Onboarding:        ts.onboarding,
		Jobs:              ts.jobs,
		HealthChecker:     ts.health,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("# metrics"))
		}),
	})
	return ts
}

// do はCSRFトークン付きでリクエストを送る。
func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "test-token"})
	req.Header.Set("X-CSRF-Token", "test-token")

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}
