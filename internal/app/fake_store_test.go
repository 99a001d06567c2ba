package app

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"civicboard/api/internal/auth"
	"civicboard/api/internal/config"
	"civicboard/api/internal/governance"
	"civicboard/api/internal/store"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	testSecret   = "test-secret"
	testEntityID = "0c6b6c57-1f77-4c1e-9a43-7b0d6f0e2a11"
	testMeeting  = "5d1f3b0e-8a2c-4f61-b0a4-2f9c7e1d3a22"
	otherMeeting = "9e4a2d17-6c3b-4b8e-a1f0-3d5c8b7e4f33"
	testMotion   = "7a3e9c21-4d5f-4a6b-8c7d-1e2f3a4b5c44"
	testVersion  = "2b8d4f60-3e1a-4c9b-9d7e-5f6a7b8c9d55"
	testChair    = "11111111-1111-4111-8111-111111111111"
)

func pgRaise(message string) error {
	return fmt.Errorf("call procedure: %w", &pgconn.PgError{Severity: "ERROR", Code: "P0001", Message: message})
}

// fakeStore satisfies governance.Store. The harbor-trust entity owns
// testMeeting and testMotion; otherMeeting belongs to someone else.
type fakeStore struct {
	pingFn                   func(context.Context) error
	insertMotionFn           func(context.Context, store.NewMotion) (store.Motion, error)
	upsertVoteFn             func(context.Context, string, string, string) (store.Vote, error)
	finalizeMotionFn         func(context.Context, store.ApprovalRequest) (string, error)
	approveMinutesFn         func(context.Context, store.ApprovalRequest) (string, error)
	getPacketFn              func(context.Context, string) (store.Packet, error)
	getVersionFn             func(context.Context, string, string, string) (store.DocumentVersion, error)
	approveDocumentVersionFn func(context.Context, store.ApprovalRequest) (string, error)
	setBoardPacketVersionFn  func(context.Context, string, string) error
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) ResolveEntity(_ context.Context, key string) (store.Entity, error) {
	if key == "harbor-trust" || key == testEntityID {
		return store.Entity{ID: testEntityID, Type: "nonprofit", Slug: "harbor-trust", DisplayName: "Harbor Trust", IsActive: true}, nil
	}
	return store.Entity{}, sql.ErrNoRows
}

func (f *fakeStore) MeetingEntityID(_ context.Context, meetingID string) (string, error) {
	switch meetingID {
	case testMeeting:
		return testEntityID, nil
	case otherMeeting:
		return "4f5e6d7c-8b9a-4011-8233-445566778899", nil
	}
	return "", sql.ErrNoRows
}

func (f *fakeStore) InsertMotion(ctx context.Context, in store.NewMotion) (store.Motion, error) {
	if f.insertMotionFn != nil {
		return f.insertMotionFn(ctx, in)
	}
	return store.Motion{
		ID:        testMotion,
		MeetingID: in.MeetingID,
		Title:     in.Title,
		Status:    store.MotionPending,
		CreatedAt: time.Now(),
	}, nil
}

func (f *fakeStore) ListMotions(context.Context, string) ([]store.Motion, error) {
	return []store.Motion{}, nil
}

func (f *fakeStore) GetMotion(_ context.Context, motionID string) (store.Motion, error) {
	if motionID != testMotion {
		return store.Motion{}, sql.ErrNoRows
	}
	return store.Motion{ID: testMotion, MeetingID: testMeeting, Title: "Adopt budget", Status: store.MotionPending}, nil
}

func (f *fakeStore) UpsertVote(ctx context.Context, motionID, principalID, value string) (store.Vote, error) {
	if f.upsertVoteFn != nil {
		return f.upsertVoteFn(ctx, motionID, principalID, value)
	}
	return store.Vote{MotionID: motionID, BoardMemberID: principalID, Value: value, SignedAt: time.Now()}, nil
}

func (f *fakeStore) ListVotes(context.Context, string) ([]store.Vote, error) {
	return []store.Vote{}, nil
}

func (f *fakeStore) FinalizeMotion(ctx context.Context, req store.ApprovalRequest) (string, error) {
	if f.finalizeMotionFn != nil {
		return f.finalizeMotionFn(ctx, req)
	}
	return "approval-1", nil
}

func (f *fakeStore) ApproveMinutes(ctx context.Context, req store.ApprovalRequest) (string, error) {
	if f.approveMinutesFn != nil {
		return f.approveMinutesFn(ctx, req)
	}
	return "approval-2", nil
}

func (f *fakeStore) CreateBoardPacket(context.Context, string, string, string, string) (string, string, error) {
	return "doc-1", testVersion, nil
}

func (f *fakeStore) GetPacket(ctx context.Context, meetingID string) (store.Packet, error) {
	if f.getPacketFn != nil {
		return f.getPacketFn(ctx, meetingID)
	}
	return store.Packet{}, sql.ErrNoRows
}

func (f *fakeStore) GetPacketVersion(ctx context.Context, entityID, meetingID, versionID string) (store.DocumentVersion, error) {
	if f.getVersionFn != nil {
		return f.getVersionFn(ctx, entityID, meetingID, versionID)
	}
	return store.DocumentVersion{ID: versionID, EntityID: entityID, Status: store.VersionDraft, VersionNumber: 1}, nil
}

func (f *fakeStore) UpdateDraftVersionContent(context.Context, string, string) (bool, error) {
	return true, nil
}

func (f *fakeStore) ApproveDocumentVersion(ctx context.Context, req store.ApprovalRequest) (string, error) {
	if f.approveDocumentVersionFn != nil {
		return f.approveDocumentVersionFn(ctx, req)
	}
	return "approval-3", nil
}

func (f *fakeStore) SetBoardPacketVersion(ctx context.Context, meetingID, versionID string) error {
	if f.setBoardPacketVersionFn != nil {
		return f.setBoardPacketVersionFn(ctx, meetingID, versionID)
	}
	return nil
}

type fakeAuthorizer struct {
	allow bool
	err   error
}

func (f fakeAuthorizer) CanApprove(context.Context, string, string) (bool, error) {
	return f.allow, f.err
}

type fakeArchive struct {
	keys []string
	err  error
}

func (f *fakeArchive) Put(_ context.Context, key string, _ []byte, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	return "etag", nil
}

func newTestService(fs *fakeStore, authz governance.Authorizer) *Service {
	return New(config.Config{TokenSecret: testSecret}, Deps{
		DB:         fs,
		Governance: governance.New(fs, authz, nil),
	})
}

func bearerFor(t *testing.T, principalID string) string {
	t.Helper()
	token, err := auth.IssueToken([]byte(testSecret), auth.NewClaims(principalID, "Avery", time.Hour))
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return "Bearer " + token
}
