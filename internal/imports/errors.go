package imports

import "errors"

var (
	ErrFormat      = errors.New("invalid ride document")
	ErrValueDecode = errors.New("could not decode field value")
	ErrRead        = errors.New("could not read ride document")
	ErrStoreWrite  = errors.New("could not write imported rows")
)

const importErrorMessage = "could not import ride document"

// ImportError is returned by Run for every failed import. The cause is one
// of the sentinels above or a context error.
type ImportError struct {
	Cause error
}

func (e *ImportError) Error() string {
	if e.Cause == nil {
		return importErrorMessage
	}
	return importErrorMessage + ": " + e.Cause.Error()
}

func (e *ImportError) Unwrap() error {
	return e.Cause
}
