package service

import (
	"context"
	"encoding/json"
	"strings"

	"schoolportal/internal/entity"
	"schoolportal/internal/repository"
	"schoolportal/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

type AuditEvent struct {
	Actor     *entity.OwnerRef
	Subject   *uuid.UUID
	IPAddress *string
	Action    entity.SecurityAction
	Metadata  map[string]any
}

// AuditRecorder writes security log rows. Events without an actor are attributed to the
// system user resolved once at startup. Write failures are logged and never returned.
type AuditRecorder struct {
	logs   repository.SecurityLogRepository
	logger logrus.FieldLogger
	system *entity.OwnerRef
}

func NewAuditRecorder(logs repository.SecurityLogRepository, logger logrus.FieldLogger) *AuditRecorder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AuditRecorder{logs: logs, logger: logger}
}

// ResolveSystemUser looks up the system admin by email. A missing account leaves
// unattributed events with no actor.
func (a *AuditRecorder) ResolveSystemUser(
	ctx context.Context,
	principals repository.PrincipalRepository,
	protector *utils.Protector,
	email string,
) error {
	if strings.TrimSpace(email) == "" {
		a.logger.Warn("SYSTEM_USER_EMAIL not set; audit events without an actor stay unattributed")
		return nil
	}
	hash, err := protector.SearchHash(email, utils.FieldEmail)
	if err != nil {
		return err
	}
	principal, err := principals.FindByEmailHash(ctx, entity.OwnerAdmin, hash)
	if err != nil {
		return err
	}
	if principal == nil {
		a.logger.WithField("email", utils.NormalizeEmail(email)).Warn("system user not found")
		return nil
	}
	ref := principal.Ref()
	a.system = &ref
	return nil
}

func (a *AuditRecorder) SystemUser() *entity.OwnerRef {
	if a == nil {
		return nil
	}
	return a.system
}

func (a *AuditRecorder) Record(ctx context.Context, event AuditEvent) {
	if a == nil || a.logs == nil {
		return
	}
	actor := event.Actor
	if actor == nil {
		actor = a.system
	}

	var payload datatypes.JSON
	if event.Metadata != nil {
		bytes, err := json.Marshal(event.Metadata)
		if err != nil {
			a.logger.WithError(err).WithField("action", event.Action).Warn("failed to encode audit metadata")
		} else {
			payload = datatypes.JSON(bytes)
		}
	}

	log := &entity.SecurityLog{
		SubjectID: event.Subject,
		IPAddress: event.IPAddress,
		Action:    event.Action,
		Metadata:  payload,
	}
	if actor != nil {
		id, kind := actor.ID, actor.Kind
		log.ActorID = &id
		log.ActorKind = &kind
	}
	if err := a.logs.Log(ctx, log); err != nil {
		a.logger.WithError(err).WithField("action", event.Action).Warn("failed to write security log")
	}
}
