package audit

import (
	"context"

	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// Audit actions.
const (
	ActionRegister        = "user.register"
	ActionLogin           = "user.login"
	ActionLoginFailed     = "user.login_failed"
	ActionLogout          = "user.logout"
	ActionSendRequest     = "user.send_request"
	ActionAcceptRequest   = "user.accept_request"
	ActionRejectRequest   = "user.reject_request"
	ActionSocketConnect   = "socket.connect"
	ActionSocketAuthFail  = "socket.auth_failed"
	ActionSocketClose     = "socket.disconnect"
	ActionPersistFailed   = "message.persist_failed"
	ActionCreateGroup     = "chat.create_group"
	ActionAddMembers      = "chat.add_members"
	ActionRemoveMember    = "chat.remove_member"
	ActionLeaveGroup      = "chat.leave_group"
	ActionRenameGroup     = "chat.rename"
	ActionDeleteChat      = "chat.delete"
	ActionSendAttachments = "chat.send_attachments"
	ActionAdminLogin      = "admin.login"
	ActionAdminLoginFail  = "admin.login_failed"
)

// Field constants for audit entries.
const (
	FieldAction   = "action"
	FieldTargetID = "target_id"
	FieldDetail   = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, userID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Msg(msg)
}

// LogWithTarget emits an audit log naming the object acted on.
func LogWithTarget(ctx context.Context, action string, userID string, targetID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldTargetID, targetID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action string, userID string, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldDetail, detail).
		Msg(msg)
}
