package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/hagwonmatch/internal/model"
)

// PostgresApplicationRepo はPostgreSQLを使用した応募リポジトリ。
type PostgresApplicationRepo struct {
	db *sql.DB
}

// NewPostgresApplicationRepo はPostgresApplicationRepoを生成する。
func NewPostgresApplicationRepo(db *sql.DB) *PostgresApplicationRepo {
	return &PostgresApplicationRepo{db: db}
}

const selectApplicationColumns = `SELECT id, teacher_id, job_id, message, status, created_at, updated_at FROM applications`

func scanApplication(row rowScanner) (*model.Application, error) {
	a := &model.Application{}
	var status string
	if err := row.Scan(&a.ID, &a.TeacherID, &a.JobID, &a.Message, &status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Status = model.ApplicationStatus(status)
	return a, nil
}

// FindByID は指定IDの応募を取得する。見つからない場合はnilを返す。
func (r *PostgresApplicationRepo) FindByID(ctx context.Context, id string) (*model.Application, error) {
	a, err := scanApplication(r.db.QueryRowContext(ctx, selectApplicationColumns+` WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find application: %w", err)
	}
	return a, nil
}

// Create は応募を作成する。
func (r *PostgresApplicationRepo) Create(ctx context.Context, a *model.Application) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO applications (id, teacher_id, job_id, message, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.TeacherID, a.JobID, a.Message, string(a.Status), a.CreatedAt, a.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	return nil
}

// ListByTeacher は講師の応募一覧をcreated_at降順で返す。
func (r *PostgresApplicationRepo) ListByTeacher(ctx context.Context, teacherID string) ([]*model.Application, error) {
	return r.list(ctx, selectApplicationColumns+` WHERE teacher_id = $1 ORDER BY created_at DESC`, teacherID)
}

// ListByJob は求人への応募一覧をcreated_at降順で返す。
func (r *PostgresApplicationRepo) ListByJob(ctx context.Context, jobID string) ([]*model.Application, error) {
	return r.list(ctx, selectApplicationColumns+` WHERE job_id = $1 ORDER BY created_at DESC`, jobID)
}

func (r *PostgresApplicationRepo) list(ctx context.Context, query, arg string) ([]*model.Application, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	var apps []*model.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate applications: %w", err)
	}
	return apps, nil
}

// UpdateStatus は応募のステータスを更新する。
func (r *PostgresApplicationRepo) UpdateStatus(ctx context.Context, id string, status model.ApplicationStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE applications SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("failed to update application status: %w", err)
	}
	return requireAffected(result)
}

// CountSince は講師が指定時刻以降に送信した応募数を返す。
func (r *PostgresApplicationRepo) CountSince(ctx context.Context, teacherID string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM applications WHERE teacher_id = $1 AND created_at >= $2`,
		teacherID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count applications: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ ApplicationRepository = (*PostgresApplicationRepo)(nil)
