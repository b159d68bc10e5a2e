package models

// BatchFailure records a failed batch during bulk slot insertion.
type BatchFailure struct {
	CoachID   int64  `json:"coach_id"`
	Batch     int    `json:"batch"`
	Committed int    `json:"committed"`
	Error     string `json:"error"`
}

// GenerationReport summarizes one regeneration run.
type GenerationReport struct {
	From     string         `json:"from"`
	To       string         `json:"to"`
	Deleted  int64          `json:"deleted"`
	Created  int            `json:"created"`
	Failures []BatchFailure `json:"failures,omitempty"`
}

func (r *GenerationReport) Partial() bool {
	return len(r.Failures) > 0
}
