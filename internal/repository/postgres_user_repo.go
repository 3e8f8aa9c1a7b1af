package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/hagwonmatch/internal/model"
)

// PostgresAuthUserRepo はPostgreSQLを使用した認証ユーザーリポジトリ。
type PostgresAuthUserRepo struct {
	db *sql.DB
}

// NewPostgresAuthUserRepo はPostgresAuthUserRepoを生成する。
func NewPostgresAuthUserRepo(db *sql.DB) *PostgresAuthUserRepo {
	return &PostgresAuthUserRepo{db: db}
}

const selectAuthUserColumns = `SELECT id, email, password_hash, user_metadata, email_confirmed_at, created_at, updated_at FROM auth_users`

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresAuthUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	u, err := r.findOne(ctx, selectAuthUserColumns+` WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	if u == nil {
		return nil, nil
	}
	return &u.User, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
// メールアドレスは大文字小文字を区別しない。
func (r *PostgresAuthUserRepo) FindByEmail(ctx context.Context, email string) (*AuthUser, error) {
	u, err := r.findOne(ctx, selectAuthUserColumns+` WHERE lower(email) = lower($1)`, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return u, nil
}

func (r *PostgresAuthUserRepo) findOne(ctx context.Context, query string, arg string) (*AuthUser, error) {
	u := &AuthUser{}
	var metadata []byte
	var confirmedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &metadata, &confirmedAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &u.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode user metadata: %w", err)
		}
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		u.EmailConfirmedAt = &t
	}
	return u, nil
}

// CreateWithProfile はユーザーとprofilesの行を同一トランザクションで作成する。
func (r *PostgresAuthUserRepo) CreateWithProfile(ctx context.Context, user *AuthUser, profile *model.Profile) error {
	metadata, err := json.Marshal(user.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode user metadata: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// ユーザーを作成
	_, err = tx.ExecContext(ctx,
		`INSERT INTO auth_users (id, email, password_hash, user_metadata, email_confirmed_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Email, user.PasswordHash, metadata, user.EmailConfirmedAt, user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	// profilesを作成
	_, err = tx.ExecContext(ctx,
		`INSERT INTO profiles (id, user_type, email, full_name, avatar_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		profile.ID, string(profile.UserType), profile.Email, nullString(profile.FullName),
		nullString(profile.AvatarURL), profile.CreatedAt, profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// compile-time interface check
var _ AuthUserRepository = (*PostgresAuthUserRepo)(nil)
