package files

import "errors"

// Errors returned by the file service.
var (
	ErrNotFound        = errors.New("file not found")
	ErrForbidden       = errors.New("permission denied")
	ErrUnauthenticated = errors.New("authentication required")
	ErrTooLarge        = errors.New("file too large")
	ErrEmptyUpload     = errors.New("no file uploaded")
	ErrInvalidContext  = errors.New("invalid chat context")
	ErrInvalidName     = errors.New("invalid file name")
)
