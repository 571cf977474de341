package syntax

import "fmt"

// MalformedNodeError reports a node lacking a child the grammar guarantees.
// It means the tree handed to the analyzer is corrupt, not that the program
// uses an unsupported construct.
type MalformedNodeError struct {
	Kind   string
	Field  string
	Offset int
}

func (e *MalformedNodeError) Error() string {
	return fmt.Sprintf("malformed %s at offset %d: missing %q", e.Kind, e.Offset, e.Field)
}
