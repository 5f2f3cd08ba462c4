package protocol

import "fmt"

// PayloadError reports a payload element that is missing or has the wrong shape
type PayloadError struct {
	Op     OpCode
	Index  int
	Reason string
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("invalid %s payload at index %d: %s", e.Op, e.Index, e.Reason)
}

// Underflow reports a payload that ended before all expected elements were read
type Underflow struct {
	Op      OpCode
	Len     int
	Minimum int
}

func (e *Underflow) Error() string {
	return fmt.Sprintf("%s payload underflowed, provided %d elements, needed at least %d", e.Op, e.Len, e.Minimum)
}
