package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/formbox/formbox/log"
	"github.com/formbox/formbox/sheets"
)

// maxShift caps the durable retry delay at interval << maxShift.
const maxShift = 6

// Worker drains mirror_outbox rows to the spreadsheet. Submission handlers
// only write outbox rows inside their own transaction; the external call
// never happens on a request thread.
type Worker struct {
	db       *sql.DB
	sheet    sheets.Appender
	interval time.Duration

	newBackOff func() backoff.BackOff
}

func NewWorker(db *sql.DB, sheet sheets.Appender, interval time.Duration) *Worker {
	return &Worker{
		db:       db,
		sheet:    sheet,
		interval: interval,
		newBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
		},
	}
}

// Run polls for due rows until ctx is canceled.
func (wk *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(wk.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := wk.DrainOnce(ctx)
			if err != nil {
				log.Errorf("outbox.drain: %s", err)
			}
		}
	}
}

// DrainOnce sends every due unsent row, in insertion order. A row that keeps
// failing is rescheduled with a growing delay and retried on a later pass.
func (wk *Worker) DrainOnce(ctx context.Context) error {
	rows, err := wk.db.QueryContext(ctx, `
		SELECT id, attempts, row_json
		FROM mirror_outbox
		WHERE sent_at IS NULL
			AND next_attempt_at <= ?
		ORDER BY id`,
		time.Now(),
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	type entry struct {
		id       int
		attempts int
		rowJson  string
	}
	var entries []entry
	for rows.Next() {
		var e entry
		err = rows.Scan(&e.id, &e.attempts, &e.rowJson)
		if err != nil {
			return err
		}
		entries = append(entries, e)
	}
	err = rows.Err()
	if err != nil {
		return err
	}

	for _, e := range entries {
		var row []string
		err = json.Unmarshal([]byte(e.rowJson), &row)
		if err != nil {
			// row_json is written by us, so this should never happen
			log.Errorf("outbox.parse_row (%d): %s", e.id, err)
			wk.reschedule(ctx, e.id, e.attempts)
			continue
		}

		err = backoff.Retry(
			func() error { return wk.sheet.Append(ctx, row) },
			backoff.WithContext(wk.newBackOff(), ctx),
		)
		if err != nil {
			log.Warnf("outbox.append (%d): %s", e.id, err)
			wk.reschedule(ctx, e.id, e.attempts)
			continue
		}

		_, err = wk.db.ExecContext(ctx, `
			UPDATE mirror_outbox
			SET sent_at = ?
			WHERE id = ?`,
			time.Now(),
			e.id,
		)
		if err != nil {
			return err
		}
		log.Debugf("outbox.sent (%d)", e.id)
	}

	return nil
}

func (wk *Worker) reschedule(ctx context.Context, id, attempts int) {
	shift := attempts
	if shift > maxShift {
		shift = maxShift
	}
	delay := wk.interval << shift

	_, err := wk.db.ExecContext(ctx, `
		UPDATE mirror_outbox
		SET attempts = attempts + 1,
			next_attempt_at = ?
		WHERE id = ?`,
		time.Now().Add(delay),
		id,
	)
	if err != nil {
		log.Errorf("outbox.reschedule (%d): %s", id, err)
	}
}
