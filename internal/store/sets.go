package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pavelanni/adaptquiz/internal/model"
)

// SaveGeneratedSet archives a question set produced by the generative model.
func (s *Store) SaveGeneratedSet(set model.GeneratedSet) error {
	data, err := json.Marshal(set.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	_, err = s.db.Exec(s.rebind(
		`INSERT INTO generated_sets (topic_key, topic, difficulty, generated, questions_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		topicKey(set.Topic), set.Topic, int(set.Difficulty), set.Generated,
		string(data), time.Now().Unix(),
	)
	return err
}

// CountGeneratedSets returns the number of archived sets for topic, matched
// case-insensitively. An empty topic counts every set.
func (s *Store) CountGeneratedSets(topic string) (int, error) {
	var n int
	var err error
	if topic == "" {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM generated_sets`).Scan(&n)
	} else {
		err = s.db.QueryRow(s.rebind(
			`SELECT COUNT(*) FROM generated_sets WHERE topic_key = ?`), topicKey(topic)).Scan(&n)
	}
	return n, err
}

// ArchivedQuestions returns the questions of every archived set for topic
// and tier, oldest first.
func (s *Store) ArchivedQuestions(topic string, tier model.Tier) ([]model.Question, error) {
	rows, err := s.db.Query(s.rebind(
		`SELECT questions_json FROM generated_sets
		 WHERE topic_key = ? AND difficulty = ? ORDER BY id`),
		topicKey(topic), int(tier),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Question
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var qs []model.Question
		if err := json.Unmarshal([]byte(payload), &qs); err != nil {
			return nil, fmt.Errorf("decode archived set: %w", err)
		}
		out = append(out, qs...)
	}
	return out, rows.Err()
}

func topicKey(topic string) string {
	return strings.ToLower(strings.TrimSpace(topic))
}
