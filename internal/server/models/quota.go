package models

// Quota is a point-in-time usage snapshot in bytes. Free goes negative when
// a user is over quota.
type Quota struct {
	Used  int64 `json:"used"`
	Total int64 `json:"total"`
	Free  int64 `json:"free"`
}
