package models

// RawRecord is an unvalidated record as received from the open data API.
// Nothing about its keys or value types is guaranteed.
type RawRecord map[string]any

// Rejection is a raw record that failed validation, kept with its reason.
type Rejection struct {
	Index  int       `json:"index"`
	Raw    RawRecord `json:"raw"`
	Reason string    `json:"reason"`
	Errors []string  `json:"errors"`
}
