package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/adaptquiz/internal/model"
)

// SaveResult stores a quiz summary under a new random ID.
func (s *Store) SaveResult(sum model.Summary) (model.StoredResult, error) {
	data, err := json.Marshal(sum)
	if err != nil {
		return model.StoredResult{}, fmt.Errorf("marshal summary: %w", err)
	}
	res := model.StoredResult{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Summary:   sum,
	}
	_, err = s.db.Exec(s.rebind(
		`INSERT INTO results (id, topic, score, total, correct, is_ai_quiz, summary_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		res.ID, sum.Topic, sum.Score, sum.Total, sum.Correct, boolToInt(sum.IsAIQuiz),
		string(data), res.CreatedAt.Unix(),
	)
	if err != nil {
		return model.StoredResult{}, fmt.Errorf("insert result: %w", err)
	}
	return res, nil
}

// GetResult returns the stored result with the given ID, or ErrNotFound.
func (s *Store) GetResult(id string) (model.StoredResult, error) {
	row := s.db.QueryRow(s.rebind(
		`SELECT id, summary_json, created_at FROM results WHERE id = ?`), id)
	res, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.StoredResult{}, ErrNotFound
	}
	return res, err
}

// ListResults returns stored results, newest first. An empty topic lists all
// topics; limit <= 0 means no limit.
func (s *Store) ListResults(topic string, limit int) ([]model.StoredResult, error) {
	query := `SELECT id, summary_json, created_at FROM results`
	var args []any
	if topic != "" {
		query += ` WHERE topic = ?`
		args = append(args, topic)
	}
	query += ` ORDER BY created_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.StoredResult
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// CountResults returns the number of stored results.
func (s *Store) CountResults() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM results`).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(sc scanner) (model.StoredResult, error) {
	var (
		res     model.StoredResult
		payload string
		created int64
	)
	if err := sc.Scan(&res.ID, &payload, &created); err != nil {
		return model.StoredResult{}, err
	}
	if err := json.Unmarshal([]byte(payload), &res.Summary); err != nil {
		return model.StoredResult{}, fmt.Errorf("decode result %s: %w", res.ID, err)
	}
	res.CreatedAt = time.Unix(created, 0).UTC()
	return res, nil
}
