package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/hagwonmatch/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	p := &model.Profile{}
	var userType string
	var fullName, avatarURL sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_type, email, full_name, avatar_url, created_at, updated_at
		 FROM profiles WHERE id = $1`,
		id,
	).Scan(&p.ID, &userType, &p.Email, &fullName, &avatarURL, &p.CreatedAt, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}

	p.UserType = model.UserType(userType)
	p.FullName = nullStringValue(fullName)
	p.AvatarURL = nullStringValue(avatarURL)
	return p, nil
}

// UpdateFullName は表示名を更新する。
func (r *PostgresProfileRepo) UpdateFullName(ctx context.Context, id, fullName string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET full_name = $2, updated_at = now() WHERE id = $1`,
		id, fullName,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile name: %w", err)
	}
	return requireAffected(result)
}

// PostgresTeacherProfileRepo はPostgreSQLを使用した講師プロフィールリポジトリ。
type PostgresTeacherProfileRepo struct {
	db *sql.DB
}

// NewPostgresTeacherProfileRepo はPostgresTeacherProfileRepoを生成する。
func NewPostgresTeacherProfileRepo(db *sql.DB) *PostgresTeacherProfileRepo {
	return &PostgresTeacherProfileRepo{db: db}
}

// FindByID は指定IDの講師プロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresTeacherProfileRepo) FindByID(ctx context.Context, id string) (*model.TeacherProfile, error) {
	p := &model.TeacherProfile{}
	var nationality, location, bio sql.NullString
	var experience, salaryMin, salaryMax sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT id, nationality, location_preference, bio, subjects, experience_years,
		        salary_expectation_min, salary_expectation_max, profile_complete, created_at, updated_at
		 FROM teacher_profiles WHERE id = $1`,
		id,
	).Scan(&p.ID, &nationality, &location, &bio, pq.Array(&p.Subjects), &experience,
		&salaryMin, &salaryMax, &p.ProfileComplete, &p.CreatedAt, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find teacher profile: %w", err)
	}

	p.Nationality = nullStringValue(nationality)
	p.LocationPreference = nullStringValue(location)
	p.Bio = nullStringValue(bio)
	p.ExperienceYears = intPtr(experience)
	p.SalaryExpectationMin = intPtr(salaryMin)
	p.SalaryExpectationMax = intPtr(salaryMax)
	return p, nil
}

// Create は講師プロフィールを作成する。
func (r *PostgresTeacherProfileRepo) Create(ctx context.Context, p *model.TeacherProfile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO teacher_profiles (id, nationality, location_preference, bio, subjects, experience_years,
		                               salary_expectation_min, salary_expectation_max, profile_complete, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, nullString(p.Nationality), nullString(p.LocationPreference), nullString(p.Bio),
		pq.Array(p.Subjects), nullInt(p.ExperienceYears), nullInt(p.SalaryExpectationMin),
		nullInt(p.SalaryExpectationMax), p.ProfileComplete, p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create teacher profile: %w", err)
	}
	return nil
}

// PostgresHagwonProfileRepo はPostgreSQLを使用した語学学校プロフィールリポジトリ。
type PostgresHagwonProfileRepo struct {
	db *sql.DB
}

// NewPostgresHagwonProfileRepo はPostgresHagwonProfileRepoを生成する。
func NewPostgresHagwonProfileRepo(db *sql.DB) *PostgresHagwonProfileRepo {
	return &PostgresHagwonProfileRepo{db: db}
}

// FindByID は指定IDの語学学校プロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresHagwonProfileRepo) FindByID(ctx context.Context, id string) (*model.HagwonProfile, error) {
	p := &model.HagwonProfile{}
	var schoolName, location, description, website sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, school_name, location, description, website, created_at, updated_at
		 FROM hagwon_profiles WHERE id = $1`,
		id,
	).Scan(&p.ID, &schoolName, &location, &description, &website, &p.CreatedAt, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find hagwon profile: %w", err)
	}

	p.SchoolName = nullStringValue(schoolName)
	p.Location = nullStringValue(location)
	p.Description = nullStringValue(description)
	p.Website = stringPtr(website)
	return p, nil
}

// Create は語学学校プロフィールを作成する。
func (r *PostgresHagwonProfileRepo) Create(ctx context.Context, p *model.HagwonProfile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO hagwon_profiles (id, school_name, location, description, website, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, nullString(p.SchoolName), nullString(p.Location), nullString(p.Description),
		nullStringPtr(p.Website), p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create hagwon profile: %w", err)
	}
	return nil
}

// compile-time interface checks
var (
	_ ProfileRepository        = (*PostgresProfileRepo)(nil)
	_ TeacherProfileRepository = (*PostgresTeacherProfileRepo)(nil)
	_ HagwonProfileRepository  = (*PostgresHagwonProfileRepo)(nil)
)
