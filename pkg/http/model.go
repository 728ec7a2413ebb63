package http

import "time"

// APIResponse is the envelope of every status API answer.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError describes one rejected query field.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_LTE"`
	Field   string                 `json:"field,omitempty" example:"Limit"`
	Message string                 `json:"message,omitempty" example:"Limit must be less than or equal to 5000"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

type ListDataResponse struct {
	Rows  interface{} `json:"rows"`
	Total int64       `json:"total"`
}

// TimeRange is the window a history query covered.
type TimeRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

func NewTimeRange(from, to time.Time) TimeRange {
	return TimeRange{From: &from, To: &to}
}

// Valid reports whether the window is open-ended or ordered.
func (r TimeRange) Valid() bool {
	return r.From == nil || r.To == nil || !r.To.Before(*r.From)
}
