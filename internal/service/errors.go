package service

import "github.com/weiawesome/wes-io-chat/internal/domain"

// Error is a service failure with the message shown to clients. Kind is one of
// the domain sentinels so boundaries can classify it with errors.Is.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

var (
	ErrInvalidSession     = newError(domain.ErrAuthentication, "Invalid or expired session")
	ErrInvalidCredentials = newError(domain.ErrNotFound, "Invalid Credentials")
	ErrInvalidAdminKey    = newError(domain.ErrAuthentication, "Invalid Admin Key")
	ErrUsernameTaken      = newError(domain.ErrConflict, "Username already exists")
	ErrAvatarRequired     = newError(domain.ErrValidation, "Please upload avatar")
	ErrUserNotFound       = newError(domain.ErrNotFound, "User not found")

	ErrSelfRequest     = newError(domain.ErrValidation, "You cannot send a request to yourself")
	ErrRequestExists   = newError(domain.ErrValidation, "Request already sent")
	ErrRequestNotFound = newError(domain.ErrNotFound, "Request not found")
	ErrNotReceiver     = newError(domain.ErrAuthorization, "You are not authorized to accept this request")

	ErrChatNotFound    = newError(domain.ErrNotFound, "Chat not found")
	ErrNotGroup        = newError(domain.ErrValidation, "This is not a group chat")
	ErrNotAdmin        = newError(domain.ErrAuthorization, "You are not admin")
	ErrNoChatAccess    = newError(domain.ErrAuthorization, "You are not allowed to access this chat")
	ErrAlreadyInGroup  = newError(domain.ErrValidation, "Users selected already in the group")
	ErrGroupLimit      = newError(domain.ErrValidation, "Group members limit reached")
	ErrGroupTooSmall   = newError(domain.ErrValidation, "Group chat must have at least 3 members")
	ErrUserNotInGroup  = newError(domain.ErrValidation, "User is not in the group")
	ErrNotGroupMember  = newError(domain.ErrValidation, "You are not a member of this group")
	ErrNoAttachments   = newError(domain.ErrValidation, "Please upload attachments")
	ErrTooManyFiles    = newError(domain.ErrValidation, "Files can't be more than 5")
	ErrInvalidPage     = newError(domain.ErrValidation, "Invalid page")
	ErrInvalidGroupArg = newError(domain.ErrValidation, "Invalid group members")
)
