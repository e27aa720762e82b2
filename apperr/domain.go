package apperr

var (
	// Collaborator errors, returned by every backend implementation.
	ErrNotFound  = NotFound("record not found")
	ErrForbidden = Forbidden("operation not permitted for this user")
	ErrConflict  = AlreadyExists("record already exists")
	ErrInvalid   = InvalidArg("invalid request")

	// Chat errors
	ErrEmptyMessage       = InvalidArg("message content cannot be empty")
	ErrNoActiveChat       = FailedPrecondition("no active conversation")
	ErrMessageDeleted     = FailedPrecondition("message was deleted")
	ErrUnknownMessage     = NotFound("message not loaded")
	ErrSelfConversation   = InvalidArg("cannot start a conversation with yourself")
	ErrSessionClosed      = FailedPrecondition("session closed")
	ErrInvalidToken       = Unauthorized("invalid or expired access token")
	ErrMissingViewer      = Unauthorized("no authenticated user")
	ErrNotGroupAdmin      = Forbidden("only group admins can do this")
	ErrAlreadyMember      = AlreadyExists("already a group member")
	ErrEmptyUpload        = InvalidArg("upload is empty")
	ErrUnsupportedPayload = InvalidArg("message needs text, media or a shared article")
)
