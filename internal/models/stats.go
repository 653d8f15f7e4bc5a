package models

// BatchStats summarizes one pass of the batch cleaner.
// Accepted + Rejected always equals Total.
type BatchStats struct {
	Total            int            `json:"total"`
	Accepted         int            `json:"accepted"`
	Rejected         int            `json:"rejected"`
	RejectionReasons map[string]int `json:"rejection_reasons"`
}

// WriteError records a single failed upsert.
type WriteError struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// LoadStats summarizes the writes of one load.
type LoadStats struct {
	Inserted int          `json:"inserted"`
	Updated  int          `json:"updated"`
	Failed   int          `json:"failed"`
	Errors   []WriteError `json:"errors"`
}
