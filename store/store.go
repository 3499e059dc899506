// Package store persists survey responses and their answers.
//
// Responses are written once and never mutated or deleted. Every query is
// parameterized; the answers of a response are inserted in the same
// transaction as the response itself.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/mbolis/merchant-survey/model"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// WithClock returns a copy of the store stamping responses with now.
func (s *Store) WithClock(now func() time.Time) *Store {
	return &Store{db: s.db, now: now}
}

// Create stores r and its answers, and returns the new response id.
// r.ID is ignored and r.Timestamp is set to the current time.
// On error nothing is persisted.
func (s *Store) Create(ctx context.Context, r model.SurveyResponse) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "store.create.begin_tx")
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO survey_responses
			(category, merchant_name, timestamp, latitude, longitude, location_address)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`,
		r.Category,
		r.MerchantName,
		s.now().Format(model.TimeLayout),
		nullable(r.Latitude),
		nullable(r.Longitude),
		nullable(r.LocationAddress),
	).Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "store.create.insert_response")
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO survey_answers (response_id, question, answer)
		VALUES (?, ?, ?)`)
	if err != nil {
		return 0, errors.Wrap(err, "store.create.answers.prepare")
	}
	defer stmt.Close()

	for _, a := range r.Answers {
		_, err = stmt.ExecContext(ctx, id, a.Question, a.Answer)
		if err != nil {
			return 0, errors.Wrapf(err, "store.create.answers.insert %q", a.Question)
		}
	}

	err = tx.Commit()
	if err != nil {
		return 0, errors.Wrap(err, "store.create.commit")
	}
	return id, nil
}

// ListRecent returns at most limit responses, most recently created first.
// Answers are not loaded.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]model.SurveyResponse, error) {
	responses := []model.SurveyResponse{}
	if limit <= 0 {
		return responses, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, merchant_name, timestamp, latitude, longitude, location_address
		FROM survey_responses
		ORDER BY id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "store.list_recent")
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanHeader(rows)
		if err != nil {
			return nil, errors.Wrap(err, "store.list_recent.scan")
		}
		responses = append(responses, r)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "store.list_recent.rows")
	}
	return responses, nil
}

// Get loads a response with all of its answers.
// A missing id is reported by ok == false with a nil error.
func (s *Store) Get(ctx context.Context, id int64) (r model.SurveyResponse, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, category, merchant_name, timestamp, latitude, longitude, location_address
		FROM survey_responses
		WHERE id = ?`,
		id,
	)
	r, err = scanHeader(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SurveyResponse{}, false, nil
	}
	if err != nil {
		return model.SurveyResponse{}, false, errors.Wrap(err, "store.get")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT question, answer
		FROM survey_answers
		WHERE response_id = ?
		ORDER BY id`,
		id,
	)
	if err != nil {
		return model.SurveyResponse{}, false, errors.Wrap(err, "store.get.answers")
	}
	defer rows.Close()

	r.Answers = model.Answers{}
	for rows.Next() {
		var a model.Answer
		if err = rows.Scan(&a.Question, &a.Answer); err != nil {
			return model.SurveyResponse{}, false, errors.Wrap(err, "store.get.answers.scan")
		}
		r.Answers = append(r.Answers, a)
	}
	if err = rows.Err(); err != nil {
		return model.SurveyResponse{}, false, errors.Wrap(err, "store.get.answers.rows")
	}
	return r, true, nil
}

// ListAll returns every stored response with its answers, oldest first.
func (s *Store) ListAll(ctx context.Context) ([]model.SurveyResponse, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			r.id, r.category, r.merchant_name, r.timestamp,
			r.latitude, r.longitude, r.location_address,
			a.question, a.answer
		FROM survey_responses r
		LEFT OUTER JOIN survey_answers a ON (r.id = a.response_id)
		ORDER BY r.id, a.id`)
	if err != nil {
		return nil, errors.Wrap(err, "store.list_all")
	}
	defer rows.Close()

	responses := []model.SurveyResponse{}
	for rows.Next() {
		var (
			r                model.SurveyResponse
			lat, lng, addr   sql.NullString
			question, answer sql.NullString
		)
		err = rows.Scan(
			&r.ID, &r.Category, &r.MerchantName, &r.Timestamp,
			&lat, &lng, &addr,
			&question, &answer,
		)
		if err != nil {
			return nil, errors.Wrap(err, "store.list_all.scan")
		}

		last := len(responses) - 1
		if last < 0 || responses[last].ID != r.ID {
			r.Latitude, r.Longitude, r.LocationAddress = lat.String, lng.String, addr.String
			r.Answers = model.Answers{}
			responses = append(responses, r)
			last++
		}
		if question.Valid {
			responses[last].Answers = append(responses[last].Answers, model.Answer{
				Question: question.String,
				Answer:   answer.String,
			})
		}
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "store.list_all.rows")
	}
	return responses, nil
}

// Count returns the number of stored responses.
func (s *Store) Count(ctx context.Context) (n int, err error) {
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM survey_responses").Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "store.count")
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanHeader(row scanner) (model.SurveyResponse, error) {
	var (
		r              model.SurveyResponse
		lat, lng, addr sql.NullString
	)
	err := row.Scan(&r.ID, &r.Category, &r.MerchantName, &r.Timestamp, &lat, &lng, &addr)
	if err != nil {
		return model.SurveyResponse{}, err
	}
	r.Latitude, r.Longitude, r.LocationAddress = lat.String, lng.String, addr.String
	return r, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
