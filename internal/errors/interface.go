package errors

// ErrorCode identifies a failure class; it is stable across releases and
// logged as the error_code field.
type ErrorCode string

// Error is a coded error. Data carries structured context such as the
// failing device operation.
type Error interface {
	error
	Code() ErrorCode
	GetData() any
	Unwrap() error
}

// Factory builds coded errors.
type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, err error) Error
	WithData(code ErrorCode, data any) Error
}
