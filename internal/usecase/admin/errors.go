package admin

import "errors"

// ErrPostNotFound is returned by MarkDead when no such outbound post exists
// or it is already terminal.
var ErrPostNotFound = errors.New("outbound post not found or already terminal")
