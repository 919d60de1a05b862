package metadata

import "fmt"

// DecodeError reports a file whose tag container could not be read. It is a
// per-file failure: the file is skipped and its siblings carry on.
type DecodeError struct {
	// Name is the display name of the offending file.
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("reading tags of %s: %v", e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
