package audit

import (
	"context"

	"github.com/peerlearn/peerlearn/pkg/log"
)

// Audit actions.
const (
	ActionSignup        = "account.signup"
	ActionLogin         = "account.login"
	ActionLoginFailed   = "account.login_failed"
	ActionLogout        = "account.logout"
	ActionRefreshToken  = "account.refresh_token"
	ActionUpdateAccount = "account.update"
	ActionDeleteAccount = "account.delete"
	ActionOnboard       = "onboarding.complete"
	ActionCreateChat    = "chat.create"
	ActionUnsendMessage = "chat.unsend_message"
	ActionCreateGroup   = "group.create"
	ActionJoinGroup     = "group.join"
	ActionUploadImage   = "upload.image"
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

// LogWithTarget emits an audit log naming the entity acted upon.
func LogWithTarget(ctx context.Context, action string, userID string, targetID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldTargetID, targetID).
		Msg(msg)
}
