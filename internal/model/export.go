package model

// ResultsExport is the top-level JSON structure for stored results export.
type ResultsExport struct {
	ExportedAt string         `json:"exported_at"`
	Topic      string         `json:"topic,omitempty"`
	Count      int            `json:"count"`
	AvgScore   float64        `json:"avg_score"`
	Results    []StoredResult `json:"results"`
}
