package errors

type ErrorCode string

const (
	ErrIOGeneral            ErrorCode = "IO_GENERAL"
	ErrIOOpenFailed         ErrorCode = "IO_OPEN_FAILED"
	ErrIOCloseFailed        ErrorCode = "IO_CLOSE_FAILED"
	ErrIOReadFailed         ErrorCode = "IO_READ_FAILED"
	ErrIOWriteFailed        ErrorCode = "IO_WRITE_FAILED"
	ErrIOCanonicalizeFailed ErrorCode = "IO_CANONICALIZE_FAILED"

	ErrSystemInternal     ErrorCode = "SYSTEM_INTERNAL"
	ErrSystemInvalidInput ErrorCode = "SYSTEM_INVALID_INPUT"

	ErrPoolFileInUse          ErrorCode = "POOL_FILE_IN_USE"
	ErrPoolNotInPool          ErrorCode = "POOL_NOT_IN_POOL"
	ErrPoolHandleClosed       ErrorCode = "POOL_HANDLE_CLOSED"
	ErrPoolBackendUnsupported ErrorCode = "POOL_BACKEND_UNSUPPORTED"
	ErrPoolInterrupted        ErrorCode = "POOL_REQUEST_INTERRUPTED"
	ErrPoolClosed             ErrorCode = "POOL_CLOSED"

	ErrHeaderMagicMismatch    ErrorCode = "RRD_HEADER_MAGIC_MISMATCH"
	ErrHeaderChecksumMismatch ErrorCode = "RRD_HEADER_CHECKSUM_MISMATCH"
	ErrHeaderReadFailed       ErrorCode = "RRD_HEADER_READ_FAILED"
	ErrHeaderWriteFailed      ErrorCode = "RRD_HEADER_WRITE_FAILED"
	ErrDumpParseFailed        ErrorCode = "RRD_DUMP_PARSE_FAILED"

	ErrValidationInvalidData ErrorCode = "VALIDATION_INVALID_DATA"
)
