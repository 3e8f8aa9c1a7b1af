package auth

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/hagwonmatch/internal/model"
)

// PostgresBus はPostgreSQLのLISTEN/NOTIFYでイベントを配信するEventBus。
// 複数プロセス間でセッション変更を共有できる。
type PostgresBus struct {
	db          *sql.DB
	databaseURL string
	channel     string
	logger      *slog.Logger
}

// NewPostgresBus はPostgresBusを生成する。
func NewPostgresBus(db *sql.DB, databaseURL, channel string, logger *slog.Logger) *PostgresBus {
	return &PostgresBus{db: db, databaseURL: databaseURL, channel: channel, logger: logger}
}

// Publish はpg_notifyでイベントを送信する。
func (b *PostgresBus) Publish(ctx context.Context, ev model.AuthEvent) error {
	payload, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	if _, err := b.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, b.channel, payload); err != nil {
		return fmt.Errorf("failed to notify auth event: %w", err)
	}
	return nil
}

// Subscribe は専用のリスナー接続でLISTENを開始する。
func (b *PostgresBus) Subscribe(_ context.Context) (<-chan model.AuthEvent, func(), error) {
	listener := pq.NewListener(b.databaseURL, 10*time.Second, time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				b.logger.Warn("auth event listener error",
					slog.Int("event", int(ev)),
					slog.String("error", err.Error()),
				)
			}
		})
	if err := listener.Listen(b.channel); err != nil {
		listener.Close()
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", b.channel, err)
	}

	out := make(chan model.AuthEvent, subscriberBuffer)
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)
		for {
			select {
			case <-stop:
				return
			case n, ok := <-listener.Notify:
				if !ok {
					return
				}
				// 再接続時はnilが届く
				if n == nil {
					continue
				}
				ev, err := decodeEvent(n.Extra)
				if err != nil {
					b.logger.Warn("dropping malformed auth event", slog.String("error", err.Error()))
					continue
				}
				if !forward(out, ev, stop) {
					return
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			listener.Close()
		})
	}
	return out, cancel, nil
}

// Close は何もしない。DB接続は呼び出し側が所有する。
func (b *PostgresBus) Close() error {
	return nil
}

// compile-time interface check
var _ EventBus = (*PostgresBus)(nil)
