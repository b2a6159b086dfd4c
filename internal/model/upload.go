package model

import "time"

// Upload is a parsed invoice sample as handed to the analysis pipeline.
type Upload struct {
	CreatedAt  time.Time `json:"createdAt"`
	ID         string    `json:"id"`
	Country    string    `json:"country"`
	ERP        string    `json:"erp"`
	Records    []Record  `json:"data"`
	RowsParsed int       `json:"rowsParsed"`
}

// SourceFields returns the column names of the first record. An empty upload
// has no source fields.
func (u *Upload) SourceFields() []string {
	if u == nil || len(u.Records) == 0 {
		return []string{}
	}
	return u.Records[0].Columns()
}

// ReportSummary is the listing view of a stored readiness report.
type ReportSummary struct {
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	ID            string    `json:"id" db:"id"`
	ScoresOverall int       `json:"scores_overall" db:"scores_overall"`
}
