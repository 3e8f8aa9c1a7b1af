package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/hagwonmatch/internal/model"
)

// PostgresJobRepo はPostgreSQLを使用した求人リポジトリ。
type PostgresJobRepo struct {
	db *sql.DB
}

// NewPostgresJobRepo はPostgresJobRepoを生成する。
func NewPostgresJobRepo(db *sql.DB) *PostgresJobRepo {
	return &PostgresJobRepo{db: db}
}

const selectJobColumns = `SELECT j.id, j.hagwon_id, j.title, j.description, j.subjects, j.location,
	       j.salary_min, j.salary_max, j.requirements, j.is_active, j.created_at, j.updated_at,
	       COALESCE(h.school_name, '')
	FROM jobs j
	JOIN hagwon_profiles h ON h.id = j.hagwon_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	j := &model.Job{}
	var description, location, requirements sql.NullString
	var salaryMin, salaryMax sql.NullInt64
	if err := row.Scan(&j.ID, &j.HagwonID, &j.Title, &description, pq.Array(&j.Subjects), &location,
		&salaryMin, &salaryMax, &requirements, &j.IsActive, &j.CreatedAt, &j.UpdatedAt, &j.SchoolName); err != nil {
		return nil, err
	}
	j.Description = nullStringValue(description)
	j.Location = nullStringValue(location)
	j.Requirements = nullStringValue(requirements)
	j.SalaryMin = intPtr(salaryMin)
	j.SalaryMax = intPtr(salaryMax)
	return j, nil
}

// FindByID は指定IDの求人を学校名付きで取得する。見つからない場合はnilを返す。
func (r *PostgresJobRepo) FindByID(ctx context.Context, id string) (*model.Job, error) {
	j, err := scanJob(r.db.QueryRowContext(ctx, selectJobColumns+` WHERE j.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find job: %w", err)
	}
	return j, nil
}

// Create は求人を作成する。
func (r *PostgresJobRepo) Create(ctx context.Context, j *model.Job) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO jobs (id, hagwon_id, title, description, subjects, location, salary_min, salary_max,
		                   requirements, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		j.ID, j.HagwonID, j.Title, nullString(j.Description), pq.Array(j.Subjects), nullString(j.Location),
		nullInt(j.SalaryMin), nullInt(j.SalaryMax), nullString(j.Requirements), j.IsActive, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// ListActive は掲載中の求人をcreated_at降順で返す。
func (r *PostgresJobRepo) ListActive(ctx context.Context, limit int) ([]*model.Job, error) {
	return r.list(ctx, selectJobColumns+` WHERE j.is_active = true ORDER BY j.created_at DESC LIMIT $1`, limit)
}

// ListByHagwon は語学学校の全求人をcreated_at降順で返す。
func (r *PostgresJobRepo) ListByHagwon(ctx context.Context, hagwonID string) ([]*model.Job, error) {
	return r.list(ctx, selectJobColumns+` WHERE j.hagwon_id = $1 ORDER BY j.created_at DESC`, hagwonID)
}

func (r *PostgresJobRepo) list(ctx context.Context, query string, arg any) ([]*model.Job, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate jobs: %w", err)
	}
	return jobs, nil
}

// SetActive は求人の掲載状態を変更する。
func (r *PostgresJobRepo) SetActive(ctx context.Context, id, hagwonID string, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET is_active = $3, updated_at = $4 WHERE id = $1 AND hagwon_id = $2`,
		id, hagwonID, active, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return requireAffected(result)
}

// compile-time interface check
var _ JobRepository = (*PostgresJobRepo)(nil)
