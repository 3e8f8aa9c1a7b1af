// Package localstore は現在のログインセッションをローカルのSQLiteファイルに保持する。
// ブラウザのローカルストレージに相当し、プロセス再起動後もセッションを復元できる。
package localstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// StoredSession はローカルに保存されるセッション情報。
type StoredSession struct {
	SessionID   string
	AccessToken string
	SavedAt     time.Time
}

// Store はSQLiteを使用したセッション保存先。
type Store struct {
	db *sql.DB
}

// Open はSQLiteファイルを開き（なければ作成し）、テーブルを準備する。
// ":memory:" を指定するとインメモリDBを使用する（テスト用）。
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("failed to create store directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping local store: %w", err)
	}

	// 単一接続に制限する（":memory:" は接続ごとに別DBになるため）
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS current_session (
		slot         INTEGER PRIMARY KEY CHECK (slot = 1),
		session_id   TEXT NOT NULL,
		access_token TEXT NOT NULL,
		saved_at     INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create session table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close はDB接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}

// Load は保存済みのセッションを返す。保存されていない場合はnilを返す。
func (s *Store) Load(ctx context.Context) (*StoredSession, error) {
	ss := &StoredSession{}
	var savedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, access_token, saved_at FROM current_session WHERE slot = 1`,
	).Scan(&ss.SessionID, &ss.AccessToken, &savedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	ss.SavedAt = time.Unix(savedAt, 0)
	return ss, nil
}

// Save はセッションを保存する。既存のセッションは上書きされる。
func (s *Store) Save(ctx context.Context, sessionID, accessToken string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO current_session (slot, session_id, access_token, saved_at)
		 VALUES (1, ?, ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET
		   session_id = excluded.session_id,
		   access_token = excluded.access_token,
		   saved_at = excluded.saved_at`,
		sessionID, accessToken, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Clear は保存済みのセッションを削除する。
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM current_session`); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
