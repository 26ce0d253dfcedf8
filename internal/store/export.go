package store

import (
	"fmt"
	"math"
	"time"

	"github.com/pavelanni/adaptquiz/internal/model"
)

// ExportResults builds an export of stored results, optionally filtered by
// topic. The average score is rounded to one decimal.
func (s *Store) ExportResults(topic string) (model.ResultsExport, error) {
	results, err := s.ListResults(topic, 0)
	if err != nil {
		return model.ResultsExport{}, fmt.Errorf("list results: %w", err)
	}
	if results == nil {
		results = []model.StoredResult{}
	}

	var sum int
	for _, r := range results {
		sum += r.Summary.Score
	}
	var avg float64
	if len(results) > 0 {
		avg = math.Round(float64(sum)/float64(len(results))*10) / 10
	}

	return model.ResultsExport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Topic:      topic,
		Count:      len(results),
		AvgScore:   avg,
		Results:    results,
	}, nil
}
