package governance

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"civicboard/api/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Store interface {
	MeetingOwners
	ResolveEntity(ctx context.Context, key string) (store.Entity, error)

	InsertMotion(ctx context.Context, in store.NewMotion) (store.Motion, error)
	ListMotions(ctx context.Context, meetingID string) ([]store.Motion, error)
	GetMotion(ctx context.Context, motionID string) (store.Motion, error)
	UpsertVote(ctx context.Context, motionID, principalID, value string) (store.Vote, error)
	ListVotes(ctx context.Context, motionID string) ([]store.Vote, error)
	FinalizeMotion(ctx context.Context, req store.ApprovalRequest) (string, error)

	ApproveMinutes(ctx context.Context, req store.ApprovalRequest) (string, error)

	CreateBoardPacket(ctx context.Context, entityID, meetingID, title, createdBy string) (string, string, error)
	GetPacket(ctx context.Context, meetingID string) (store.Packet, error)
	GetPacketVersion(ctx context.Context, entityID, meetingID, versionID string) (store.DocumentVersion, error)
	UpdateDraftVersionContent(ctx context.Context, versionID, content string) (bool, error)
	ApproveDocumentVersion(ctx context.Context, req store.ApprovalRequest) (string, error)
	SetBoardPacketVersion(ctx context.Context, meetingID, versionID string) error
}

type Authorizer interface {
	CanApprove(ctx context.Context, principalID, entityID string) (bool, error)
}

// Caller identifies who is making a request. PrincipalID is empty for
// unauthenticated callers.
type Caller struct {
	PrincipalID string
	RequesterIP string
}

type Service struct {
	store    Store
	authz    Authorizer
	boundary Boundary
	logger   *zap.Logger
}

func New(st Store, authz Authorizer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    st,
		authz:    authz,
		boundary: NewBoundary(st),
		logger:   logger,
	}
}

func requireCaller(caller Caller) error {
	if strings.TrimSpace(caller.PrincipalID) == "" {
		return ErrUnauthenticated()
	}
	return nil
}

func requireID(value, label string) error {
	if _, err := uuid.Parse(value); err != nil {
		return ErrInvalid("Invalid " + label + " id")
	}
	return nil
}

func (s *Service) resolveEntity(ctx context.Context, key string) (store.Entity, error) {
	if strings.TrimSpace(key) == "" {
		return store.Entity{}, ErrNotFound("Entity not found")
	}
	entity, err := s.store.ResolveEntity(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Entity{}, ErrNotFound("Entity not found")
	}
	if err != nil {
		return store.Entity{}, persistenceFailure(err)
	}
	return entity, nil
}

// resolveMeeting resolves the entity and confirms the meeting belongs to it.
func (s *Service) resolveMeeting(ctx context.Context, entityKey, meetingID string) (store.Entity, error) {
	entity, err := s.resolveEntity(ctx, entityKey)
	if err != nil {
		return store.Entity{}, err
	}
	if err := s.boundary.Require(ctx, meetingID, entity.ID); err != nil {
		return store.Entity{}, err
	}
	return entity, nil
}

func (s *Service) requireApprover(ctx context.Context, caller Caller, entityID, message string) error {
	ok, err := s.authz.CanApprove(ctx, caller.PrincipalID, entityID)
	if err != nil {
		return ErrInternal(err)
	}
	if !ok {
		return ErrUnauthorized(message)
	}
	return nil
}

// persistenceFailure classifies a failed store call. Reasons raised by the
// database go through Classify; anything else is Internal.
func persistenceFailure(err error) error {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr
	}
	if reason, ok := store.Reason(err); ok {
		return FromReason(reason, err)
	}
	return ErrInternal(err)
}

// notFoundOr maps sql.ErrNoRows to a NotFound error with the given message.
func notFoundOr(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound(message)
	}
	return persistenceFailure(err)
}
