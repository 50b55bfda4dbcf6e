package errors

import "errors"

// Is, As and New re-export the standard library helpers so callers that
// import this package under its own name still have them.
var (
	Is  = errors.Is
	As  = errors.As
	New = errors.New
)
