package governance

import (
	"context"
	"strings"

	"civicboard/api/internal/store"
	"go.uber.org/zap"
)

const (
	DefaultPacketTitle    = "Board Packet"
	DefaultPacketApproval = "clickwrap"
)

type PacketRef struct {
	DocumentID    string
	VersionID     string
	Status        string
	VersionNumber int
}

type PacketDetail struct {
	Entity store.Entity
	Packet store.Packet
}

type ApprovePacketInput struct {
	ApprovalMethod string
	SignatureHash  string
}

// CreatePacket creates the meeting's packet document with an empty draft as
// version 1. A meeting holds at most one packet.
func (s *Service) CreatePacket(ctx context.Context, caller Caller, entityKey, meetingID, title string) (PacketRef, error) {
	if err := requireCaller(caller); err != nil {
		return PacketRef{}, err
	}
	if err := requireID(meetingID, "meeting"); err != nil {
		return PacketRef{}, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultPacketTitle
	}

	entity, err := s.resolveMeeting(ctx, entityKey, meetingID)
	if err != nil {
		return PacketRef{}, err
	}

	documentID, versionID, err := s.store.CreateBoardPacket(ctx, entity.ID, meetingID, title, caller.PrincipalID)
	if err != nil {
		return PacketRef{}, persistenceFailure(err)
	}
	return PacketRef{
		DocumentID:    documentID,
		VersionID:     versionID,
		Status:        store.VersionDraft,
		VersionNumber: 1,
	}, nil
}

func (s *Service) GetPacket(ctx context.Context, caller Caller, entityKey, meetingID string) (PacketDetail, error) {
	if err := requireCaller(caller); err != nil {
		return PacketDetail{}, err
	}
	if err := requireID(meetingID, "meeting"); err != nil {
		return PacketDetail{}, err
	}
	entity, err := s.resolveMeeting(ctx, entityKey, meetingID)
	if err != nil {
		return PacketDetail{}, err
	}

	packet, err := s.store.GetPacket(ctx, meetingID)
	if err != nil {
		return PacketDetail{}, notFoundOr(err, "Board packet not found")
	}
	return PacketDetail{Entity: entity, Packet: packet}, nil
}

// UpdatePacketContent replaces the Markdown of a draft version. The draft
// status is checked on read and asserted again by the update itself, so an
// approval that lands in between turns into a Conflict.
func (s *Service) UpdatePacketContent(ctx context.Context, caller Caller, entityKey, meetingID, versionID, contentMd string) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if err := requireID(meetingID, "meeting"); err != nil {
		return err
	}
	if err := requireID(versionID, "document version"); err != nil {
		return err
	}

	entity, err := s.resolveMeeting(ctx, entityKey, meetingID)
	if err != nil {
		return err
	}
	version, err := s.store.GetPacketVersion(ctx, entity.ID, meetingID, versionID)
	if err != nil {
		return notFoundOr(err, "Document version not found")
	}
	if version.Status != store.VersionDraft {
		return ErrConflict("Document version is not editable")
	}

	updated, err := s.store.UpdateDraftVersionContent(ctx, versionID, contentMd)
	if err != nil {
		return persistenceFailure(err)
	}
	if !updated {
		return ErrConflict("Document version is not editable")
	}
	return nil
}

// ApprovePacket approves a draft version of the meeting's packet and then
// binds it to the meeting as the canonical packet. The two steps are separate
// calls: when binding fails the version stays approved but unbound, and the
// error says so.
func (s *Service) ApprovePacket(ctx context.Context, caller Caller, entityKey, meetingID, versionID string, in ApprovePacketInput) (string, error) {
	if err := requireCaller(caller); err != nil {
		return "", err
	}
	if err := requireID(meetingID, "meeting"); err != nil {
		return "", err
	}
	if err := requireID(versionID, "document version"); err != nil {
		return "", err
	}

	entity, err := s.resolveMeeting(ctx, entityKey, meetingID)
	if err != nil {
		return "", err
	}
	if err := s.requireApprover(ctx, caller, entity.ID, "Not authorized to approve board packets"); err != nil {
		return "", err
	}

	version, err := s.store.GetPacketVersion(ctx, entity.ID, meetingID, versionID)
	if err != nil {
		return "", notFoundOr(err, "Document version not found")
	}
	if version.Status != store.VersionDraft {
		return "", ErrConflict("Document version is not draft")
	}

	approvalID, err := s.store.ApproveDocumentVersion(ctx, store.ApprovalRequest{
		SubjectID:     versionID,
		ApproverID:    caller.PrincipalID,
		Method:        methodOrDefault(in.ApprovalMethod, DefaultPacketApproval),
		SignatureHash: strings.TrimSpace(in.SignatureHash),
		RequesterIP:   caller.RequesterIP,
	})
	if err != nil {
		return "", persistenceFailure(err)
	}

	if err := s.store.SetBoardPacketVersion(ctx, meetingID, versionID); err != nil {
		s.logger.Error("board packet approved but not bound to meeting",
			zap.String("meeting_id", meetingID),
			zap.String("version_id", versionID),
			zap.String("approval_id", approvalID),
			zap.Error(err),
		)
		return "", unboundPacket(err)
	}
	return approvalID, nil
}

func unboundPacket(err error) error {
	const prefix = "Board packet approved but not bound to meeting"
	reason, ok := store.Reason(err)
	if !ok {
		return &Error{Outcome: Internal, Message: prefix, Err: err}
	}
	return &Error{Outcome: Classify(reason), Message: prefix + ": " + reason, Err: err}
}
