package error

// GenericError is implemented by every coded error the HTTP layer knows how
// to render into a response envelope.
type GenericError interface {
	ErrCode() string
	StatusCode() int
	Error() string
}
