// Package hsqlite persists terminal history records to a local sqlite file
// so a session's log survives restarts. Pending records are never written.
package hsqlite

import (
	"context"
	"database/sql"
	"fmt"

	"the-dev-tools/apiconsole/pkg/errmap"
	"the-dev-tools/apiconsole/pkg/idwrap"
	"the-dev-tools/apiconsole/pkg/model/mexec"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS executed_request (
	id BLOB PRIMARY KEY,
	method TEXT NOT NULL,
	url TEXT NOT NULL,
	request_headers BLOB NOT NULL,
	request_body BLOB,
	state INTEGER NOT NULL,
	status INTEGER,
	status_text TEXT,
	response_headers BLOB,
	response_body BLOB,
	timing_ms INTEGER,
	failure_code TEXT,
	failure_message TEXT,
	started_at INTEGER NOT NULL,
	finished_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS executed_request_started_at ON executed_request(started_at);
`

type Store struct {
	db *sql.DB
}

func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes one terminal record. Saving a pending record is a caller bug.
func (s *Store) Save(ctx context.Context, rec mexec.Record) error {
	if !rec.State.Terminal() {
		return errmap.New(errmap.CodeInvalidState, "cannot persist a pending record", nil)
	}

	reqHeaders, err := json.Marshal(rec.Request.Headers)
	if err != nil {
		return err
	}

	var status, timingMs sql.NullInt64
	var statusText, failureCode, failureMsg sql.NullString
	var respHeaders, respBody []byte
	if rec.Response != nil {
		status = sql.NullInt64{Int64: int64(rec.Response.Status), Valid: true}
		statusText = sql.NullString{String: rec.Response.StatusText, Valid: true}
		timingMs = sql.NullInt64{Int64: rec.Response.TimingMs, Valid: true}
		respBody = rec.Response.Body
		respHeaders, err = json.Marshal(rec.Response.Headers)
		if err != nil {
			return err
		}
	}
	if rec.Failure != nil {
		failureCode = sql.NullString{String: string(rec.Failure.Code), Valid: true}
		failureMsg = sql.NullString{String: rec.Failure.Message, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO executed_request (
	id, method, url, request_headers, request_body,
	state, status, status_text, response_headers, response_body,
	timing_ms, failure_code, failure_message, started_at, finished_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Request.Method, rec.Request.URL, reqHeaders, rec.Request.Body,
		rec.State, status, statusText, respHeaders, respBody,
		timingMs, failureCode, failureMsg, rec.StartedAt, rec.FinishedAt,
	)
	return err
}

// Load reads every persisted record back in insertion order.
func (s *Store) Load(ctx context.Context) ([]mexec.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, method, url, request_headers, request_body,
	state, status, status_text, response_headers, response_body,
	timing_ms, failure_code, failure_message, started_at, finished_at
FROM executed_request ORDER BY started_at, id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []mexec.Record
	for rows.Next() {
		var (
			rec                     mexec.Record
			id                      idwrap.IDWrap
			reqHeaders              []byte
			status, timingMs        sql.NullInt64
			statusText              sql.NullString
			respHeaders, respBody   []byte
			failureCode, failureMsg sql.NullString
		)
		err := rows.Scan(&id, &rec.Request.Method, &rec.Request.URL, &reqHeaders, &rec.Request.Body,
			&rec.State, &status, &statusText, &respHeaders, &respBody,
			&timingMs, &failureCode, &failureMsg, &rec.StartedAt, &rec.FinishedAt)
		if err != nil {
			return nil, err
		}
		rec.ID = id
		if err := json.Unmarshal(reqHeaders, &rec.Request.Headers); err != nil {
			return nil, fmt.Errorf("hsqlite: corrupt request headers for %s: %w", id, err)
		}
		switch {
		case status.Valid:
			resp := &mexec.ProxyResponse{
				Status:     int(status.Int64),
				StatusText: statusText.String,
				Body:       respBody,
				TimingMs:   timingMs.Int64,
			}
			if len(respHeaders) > 0 {
				if err := json.Unmarshal(respHeaders, &resp.Headers); err != nil {
					return nil, fmt.Errorf("hsqlite: corrupt response headers for %s: %w", id, err)
				}
			}
			rec.Response = resp
		case failureCode.Valid:
			rec.Failure = &mexec.Failure{
				Code:    errmap.Code(failureCode.String),
				Message: failureMsg.String,
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
