package governance

import (
	"context"
	"strings"

	"civicboard/api/internal/store"
)

const DefaultFinalizeMethod = "clickwrap"

var voteValues = map[string]bool{"yes": true, "no": true, "abstain": true}

type CreateMotionInput struct {
	Title       string
	Description string
	MovedBy     *string
	SecondedBy  *string
}

type FinalizeMotionInput struct {
	SignatureHash  string
	ApprovalMethod string
}

func (s *Service) CreateMotion(ctx context.Context, caller Caller, entityKey, meetingID string, in CreateMotionInput) (store.Motion, error) {
	if err := requireCaller(caller); err != nil {
		return store.Motion{}, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return store.Motion{}, ErrInvalid("Title is required")
	}
	if err := requireID(meetingID, "meeting"); err != nil {
		return store.Motion{}, err
	}
	movedBy, err := optionalID(in.MovedBy, "movedBy")
	if err != nil {
		return store.Motion{}, err
	}
	secondedBy, err := optionalID(in.SecondedBy, "secondedBy")
	if err != nil {
		return store.Motion{}, err
	}

	if _, err := s.resolveMeeting(ctx, entityKey, meetingID); err != nil {
		return store.Motion{}, err
	}

	motion, err := s.store.InsertMotion(ctx, store.NewMotion{
		MeetingID:   meetingID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		MovedBy:     movedBy,
		SecondedBy:  secondedBy,
	})
	if err != nil {
		return store.Motion{}, persistenceFailure(err)
	}
	return motion, nil
}

func (s *Service) ListMotions(ctx context.Context, caller Caller, entityKey, meetingID string) ([]store.Motion, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := requireID(meetingID, "meeting"); err != nil {
		return nil, err
	}
	if _, err := s.resolveMeeting(ctx, entityKey, meetingID); err != nil {
		return nil, err
	}

	motions, err := s.store.ListMotions(ctx, meetingID)
	if err != nil {
		return nil, persistenceFailure(err)
	}
	return motions, nil
}

// CastVote records the caller's ballot, replacing any earlier one. Votes on
// finalized motions are accepted.
func (s *Service) CastVote(ctx context.Context, caller Caller, entityKey, motionID, value string) (store.Vote, error) {
	if err := requireCaller(caller); err != nil {
		return store.Vote{}, err
	}
	normalized := strings.ToLower(strings.TrimSpace(value))
	if !voteValues[normalized] {
		return store.Vote{}, ErrInvalid("Vote value must be yes, no or abstain")
	}
	if err := requireID(motionID, "motion"); err != nil {
		return store.Vote{}, err
	}

	if _, _, err := s.resolveMotion(ctx, entityKey, motionID); err != nil {
		return store.Vote{}, err
	}

	vote, err := s.store.UpsertVote(ctx, motionID, caller.PrincipalID, normalized)
	if err != nil {
		return store.Vote{}, persistenceFailure(err)
	}
	return vote, nil
}

func (s *Service) ListVotes(ctx context.Context, caller Caller, entityKey, motionID string) ([]store.Vote, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := requireID(motionID, "motion"); err != nil {
		return nil, err
	}
	if _, _, err := s.resolveMotion(ctx, entityKey, motionID); err != nil {
		return nil, err
	}

	votes, err := s.store.ListVotes(ctx, motionID)
	if err != nil {
		return nil, persistenceFailure(err)
	}
	return votes, nil
}

// FinalizeMotion stamps the approval and closes the motion. Only approvers of
// the entity may finalize, and a second finalize is a Conflict.
func (s *Service) FinalizeMotion(ctx context.Context, caller Caller, entityKey, motionID string, in FinalizeMotionInput) (string, error) {
	if err := requireCaller(caller); err != nil {
		return "", err
	}
	signature := strings.TrimSpace(in.SignatureHash)
	if signature == "" {
		return "", ErrInvalid("Signature is required")
	}
	if err := requireID(motionID, "motion"); err != nil {
		return "", err
	}

	entity, _, err := s.resolveMotion(ctx, entityKey, motionID)
	if err != nil {
		return "", err
	}
	if err := s.requireApprover(ctx, caller, entity.ID, "Not authorized to finalize motions"); err != nil {
		return "", err
	}

	approvalID, err := s.store.FinalizeMotion(ctx, store.ApprovalRequest{
		SubjectID:     motionID,
		ApproverID:    caller.PrincipalID,
		Method:        methodOrDefault(in.ApprovalMethod, DefaultFinalizeMethod),
		SignatureHash: signature,
	})
	if err != nil {
		return "", persistenceFailure(err)
	}
	return approvalID, nil
}

// resolveMotion loads the motion and checks its meeting against the entity.
func (s *Service) resolveMotion(ctx context.Context, entityKey, motionID string) (store.Entity, store.Motion, error) {
	entity, err := s.resolveEntity(ctx, entityKey)
	if err != nil {
		return store.Entity{}, store.Motion{}, err
	}
	motion, err := s.store.GetMotion(ctx, motionID)
	if err != nil {
		return store.Entity{}, store.Motion{}, notFoundOr(err, "Motion not found")
	}
	if err := s.boundary.Require(ctx, motion.MeetingID, entity.ID); err != nil {
		return store.Entity{}, store.Motion{}, err
	}
	return entity, motion, nil
}

func optionalID(value *string, label string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil, nil
	}
	if err := requireID(trimmed, label); err != nil {
		return nil, err
	}
	return &trimmed, nil
}

func methodOrDefault(method, fallback string) string {
	if trimmed := strings.TrimSpace(method); trimmed != "" {
		return trimmed
	}
	return fallback
}
