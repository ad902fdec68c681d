package codec

import (
	"fmt"

	"mini-thrift/message"
)

// FieldTypeMismatchError is returned in strict mode when a known field id
// arrives with a different wire type than declared.
type FieldTypeMismatchError struct {
	ID   int16
	Got  message.TType
	Want message.TType
}

func (e *FieldTypeMismatchError) Error() string {
	return fmt.Sprintf("codec: field %d has wire type %s, want %s", e.ID, e.Got, e.Want)
}
