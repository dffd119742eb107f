package errcode

const (
	Unauthorized = "unauthorized"
	NotFound     = "not_found"
	Invalid      = "invalid"
	Conflict     = "conflict"
	BadRequest   = "bad_request"
	Internal     = "internal"
)
