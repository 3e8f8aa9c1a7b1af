package model

import "time"

// Profile はユーザーごとに1行存在する最小限のプロフィール。
// IDはUser.IDと一致する。
type Profile struct {
	ID        string
	UserType  UserType
	Email     string
	FullName  string
	AvatarURL string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TeacherProfile は講師のオンボーディングで作成される拡張プロフィール。
type TeacherProfile struct {
	ID                   string
	Nationality          string
	LocationPreference   string
	Bio                  string
	Subjects             []string
	ExperienceYears      *int
	SalaryExpectationMin *int
	SalaryExpectationMax *int
	ProfileComplete      bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// HagwonProfile は語学学校のオンボーディングで作成される拡張プロフィール。
type HagwonProfile struct {
	ID          string
	SchoolName  string
	Location    string
	Description string
	Website     *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
