package errors

// HandleError is the error type surfaced by the archive handle layer:
// opening, creating, importing and closing round robin archive files.
type HandleError struct {
	*baseError
	path    string
	backend string
	offset  int64
}

// NewHandleError creates a handle-specific error with the provided context.
func NewHandleError(err error, code ErrorCode, msg string) *HandleError {
	return &HandleError{baseError: NewBaseError(err, code, msg)}
}

// WithMessage replaces the error message.
func (he *HandleError) WithMessage(msg string) *HandleError {
	he.baseError.WithMessage(msg)
	return he
}

// WithCode replaces the error code.
func (he *HandleError) WithCode(code ErrorCode) *HandleError {
	he.baseError.WithCode(code)
	return he
}

// WithDetail attaches a contextual key-value pair.
func (he *HandleError) WithDetail(key string, value any) *HandleError {
	he.baseError.WithDetail(key, value)
	return he
}

// WithPath captures the file being processed when the error occurred.
func (he *HandleError) WithPath(path string) *HandleError {
	he.path = path
	return he
}

// WithBackend records which backend produced the handle.
func (he *HandleError) WithBackend(backend string) *HandleError {
	he.backend = backend
	return he
}

// WithOffset records the byte position where the error occurred.
func (he *HandleError) WithOffset(offset int64) *HandleError {
	he.offset = offset
	return he
}

// Path returns the file path involved in the error.
func (he *HandleError) Path() string {
	return he.path
}

// Backend returns the backend name involved in the error.
func (he *HandleError) Backend() string {
	return he.backend
}

// Offset returns the byte offset where the error happened.
func (he *HandleError) Offset() int64 {
	return he.offset
}
