package domain

import "time"

// HistoryEntry records the outcome of one aggregation run.
type HistoryEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Files      int       `json:"files"`
	Statements float64   `json:"statements"`
	Branches   float64   `json:"branches"`
	Functions  float64   `json:"functions"`
}

// History contains recorded aggregation runs, oldest first.
type History struct {
	Entries []HistoryEntry `json:"entries"`
}

// LatestEntry returns the most recent entry, or nil if the history is empty.
func (h *History) LatestEntry() *HistoryEntry {
	if len(h.Entries) == 0 {
		return nil
	}
	latest := 0
	for i := 1; i < len(h.Entries); i++ {
		if h.Entries[i].Timestamp.After(h.Entries[latest].Timestamp) {
			latest = i
		}
	}
	return &h.Entries[latest]
}

// EntryFromSummary builds a history entry from a coverage map summary.
func EntryFromSummary(sum Summary, files int, at time.Time) HistoryEntry {
	return HistoryEntry{
		Timestamp:  at,
		Files:      files,
		Statements: sum.Statements.Percent(),
		Branches:   sum.Branches.Percent(),
		Functions:  sum.Functions.Percent(),
	}
}
