package models

// Response is the envelope every endpoint answers with. Data is null on failure.
type Response struct {
	Code    int    `json:"code"`
	Data    any    `json:"data"`
	Message string `json:"message"`
}
