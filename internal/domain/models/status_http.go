package models

// RecordsRequest is the query for the recent records endpoint.
type RecordsRequest struct {
	Limit int `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=5000"`
}

// HistoryRequest queries stored records of one run. From and To accept
// RFC3339 or unix seconds; the run defaults to the current one.
type HistoryRequest struct {
	RunTag string `query:"run_tag" json:"run_tag"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	Limit  int    `query:"limit" json:"limit" default:"1000" validate:"gte=1,lte=100000"`
}
