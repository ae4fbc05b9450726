package errs

const (
	CodeValidation        = 400
	CodeAuthentication    = 401
	CodeAuthorization     = 403
	CodeMalformedRequest  = 422
	CodePersistence       = 500
	CodePresenceStoreDown = 503
)

var (
	ErrAuthentication = NewCodeError(CodeAuthentication, "authentication failed")
	ErrAuthorization  = NewCodeError(CodeAuthorization, "not a member of this chat")
	ErrValidation     = NewCodeError(CodeValidation, "invalid request")
	ErrPersistence    = NewCodeError(CodePersistence, "failed to store message")
	ErrPresenceStore  = NewCodeError(CodePresenceStoreDown, "presence store unavailable")
	ErrMalformed      = NewCodeError(CodeMalformedRequest, "malformed request")
)
