package model

import "time"

// Job は語学学校が掲載する求人を表す。
type Job struct {
	ID           string
	HagwonID     string
	Title        string
	Description  string
	Subjects     []string
	Location     string
	SalaryMin    *int
	SalaryMax    *int
	Requirements string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// SchoolName は一覧取得時にhagwon_profilesから結合される学校名。
	SchoolName string
}

// ApplicationStatus は応募の進捗状態を表す。
type ApplicationStatus string

const (
	ApplicationStatusSent      ApplicationStatus = "sent"
	ApplicationStatusViewed    ApplicationStatus = "viewed"
	ApplicationStatusResponded ApplicationStatus = "responded"
	ApplicationStatusRejected  ApplicationStatus = "rejected"
)

// Valid はApplicationStatusが定義済みの値かどうかを返す。
func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationStatusSent, ApplicationStatusViewed, ApplicationStatusResponded, ApplicationStatusRejected:
		return true
	default:
		return false
	}
}

// Application は講師から求人への応募を表す。
type Application struct {
	ID        string
	TeacherID string
	JobID     string
	Message   string
	Status    ApplicationStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// JobRecommendation は講師向け推薦求人の1行を表す。
type JobRecommendation struct {
	ID             string
	Title          string
	Description    string
	Subjects       []string
	Location       string
	SalaryMin      *int
	SalaryMax      *int
	SchoolName     string
	HagwonLocation string
	CreatedAt      time.Time
}
