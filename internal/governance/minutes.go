package governance

import (
	"context"
	"strings"

	"civicboard/api/internal/store"
)

const DefaultMinutesMethod = "in_app"

type ApproveMinutesInput struct {
	SignatureHash  string
	ApprovalMethod string
}

// ApproveMinutes approves a meeting's minutes once. Board membership is
// enforced by the database; repeating the call yields Conflict.
func (s *Service) ApproveMinutes(ctx context.Context, caller Caller, entityKey, meetingID string, in ApproveMinutesInput) (string, error) {
	if err := requireCaller(caller); err != nil {
		return "", err
	}
	if err := requireID(meetingID, "meeting"); err != nil {
		return "", err
	}
	if _, err := s.resolveMeeting(ctx, entityKey, meetingID); err != nil {
		return "", err
	}

	approvalID, err := s.store.ApproveMinutes(ctx, store.ApprovalRequest{
		SubjectID:     meetingID,
		ApproverID:    caller.PrincipalID,
		Method:        methodOrDefault(in.ApprovalMethod, DefaultMinutesMethod),
		SignatureHash: strings.TrimSpace(in.SignatureHash),
		RequesterIP:   caller.RequesterIP,
	})
	if err != nil {
		return "", persistenceFailure(err)
	}
	return approvalID, nil
}
