package store

import (
	"database/sql"
	"errors"

	"github.com/pavelanni/adaptquiz/internal/model"
)

// RecordUsage adds requests and tokens to the tally for day.
func (s *Store) RecordUsage(day string, requests, tokens int) error {
	_, err := s.db.Exec(s.rebind(
		`INSERT INTO usage_daily (day, requests, tokens) VALUES (?, ?, ?)
		 ON CONFLICT(day) DO UPDATE SET
		   requests = usage_daily.requests + excluded.requests,
		   tokens = usage_daily.tokens + excluded.tokens`),
		day, requests, tokens,
	)
	return err
}

// GetUsage returns the tally for day. A day with no usage yields zero counts.
func (s *Store) GetUsage(day string) (model.Usage, error) {
	u := model.Usage{Day: day}
	err := s.db.QueryRow(s.rebind(
		`SELECT requests, tokens FROM usage_daily WHERE day = ?`), day,
	).Scan(&u.Requests, &u.Tokens)
	if errors.Is(err, sql.ErrNoRows) {
		return u, nil
	}
	return u, err
}

// PruneUsage deletes tallies for days before the given day.
func (s *Store) PruneUsage(before string) (int64, error) {
	res, err := s.db.Exec(s.rebind(`DELETE FROM usage_daily WHERE day < ?`), before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
