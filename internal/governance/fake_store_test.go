package governance

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"civicboard/api/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

func raise(message string) error {
	return fmt.Errorf("call procedure: %w", &pgconn.PgError{Severity: "ERROR", Code: "P0001", Message: message})
}

// memStore mimics the tables and procedures closely enough to drive the
// service without a database.
type memStore struct {
	mu sync.Mutex

	entities     map[string]store.Entity
	meetingOwner map[string]string
	boardMembers map[string]map[string]string
	motions      map[string]store.Motion
	votes        map[string]map[string]store.Vote
	approvals    map[string]string
	packets      map[string]store.Packet
	versions     map[string]store.DocumentVersion
	calls        []string
	setPacketErr error
	resolveErr   error
	beforeUpdate func(versionID string)
}

func newMemStore() *memStore {
	return &memStore{
		entities:     map[string]store.Entity{},
		meetingOwner: map[string]string{},
		boardMembers: map[string]map[string]string{},
		motions:      map[string]store.Motion{},
		votes:        map[string]map[string]store.Vote{},
		approvals:    map[string]string{},
		packets:      map[string]store.Packet{},
		versions:     map[string]store.DocumentVersion{},
	}
}

func (m *memStore) addEntity(slug string) store.Entity {
	m.mu.Lock()
	defer m.mu.Unlock()
	entity := store.Entity{ID: uuid.NewString(), Type: "nonprofit", Slug: slug, DisplayName: slug, IsActive: true}
	m.entities[entity.ID] = entity
	return entity
}

// addMeeting creates a meeting for the entity with the given active members.
func (m *memStore) addMeeting(entityID string, members ...string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	meetingID := uuid.NewString()
	m.meetingOwner[meetingID] = entityID
	roster := map[string]string{}
	for _, principal := range members {
		roster[principal] = uuid.NewString()
	}
	m.boardMembers[meetingID] = roster
	return meetingID
}

func (m *memStore) record(call string) {
	m.calls = append(m.calls, call)
}

func (m *memStore) called(call string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (m *memStore) ResolveEntity(_ context.Context, key string) (store.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ResolveEntity")
	if m.resolveErr != nil {
		return store.Entity{}, m.resolveErr
	}
	for _, entity := range m.entities {
		if (entity.ID == key || entity.Slug == key) && entity.IsActive {
			return entity, nil
		}
	}
	return store.Entity{}, sql.ErrNoRows
}

func (m *memStore) MeetingEntityID(_ context.Context, meetingID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("MeetingEntityID")
	owner, ok := m.meetingOwner[meetingID]
	if !ok {
		return "", sql.ErrNoRows
	}
	return owner, nil
}

func (m *memStore) InsertMotion(_ context.Context, in store.NewMotion) (store.Motion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("InsertMotion")
	motion := store.Motion{
		ID:          uuid.NewString(),
		MeetingID:   in.MeetingID,
		Title:       in.Title,
		Description: in.Description,
		MovedBy:     in.MovedBy,
		SecondedBy:  in.SecondedBy,
		Status:      store.MotionPending,
		CreatedAt:   time.Now(),
	}
	m.motions[motion.ID] = motion
	return motion, nil
}

func (m *memStore) ListMotions(_ context.Context, meetingID string) ([]store.Motion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ListMotions")
	motions := make([]store.Motion, 0)
	for _, motion := range m.motions {
		if motion.MeetingID == meetingID {
			motions = append(motions, motion)
		}
	}
	return motions, nil
}

func (m *memStore) GetMotion(_ context.Context, motionID string) (store.Motion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("GetMotion")
	motion, ok := m.motions[motionID]
	if !ok {
		return store.Motion{}, sql.ErrNoRows
	}
	return motion, nil
}

func (m *memStore) UpsertVote(_ context.Context, motionID, principalID, value string) (store.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("UpsertVote")
	motion, ok := m.motions[motionID]
	if !ok {
		return store.Vote{}, raise("Motion not found")
	}
	memberID, ok := m.boardMembers[motion.MeetingID][principalID]
	if !ok {
		return store.Vote{}, raise("Caller must be an active board member")
	}
	if m.votes[motionID] == nil {
		m.votes[motionID] = map[string]store.Vote{}
	}
	vote := store.Vote{MotionID: motionID, BoardMemberID: memberID, Value: value, SignedAt: time.Now()}
	m.votes[motionID][memberID] = vote
	return vote, nil
}

func (m *memStore) ListVotes(_ context.Context, motionID string) ([]store.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ListVotes")
	votes := make([]store.Vote, 0, len(m.votes[motionID]))
	for _, vote := range m.votes[motionID] {
		votes = append(votes, vote)
	}
	return votes, nil
}

func (m *memStore) FinalizeMotion(_ context.Context, req store.ApprovalRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("FinalizeMotion")
	motion, ok := m.motions[req.SubjectID]
	if !ok {
		return "", raise("Motion not found")
	}
	if motion.Status == store.MotionFinalized {
		return "", raise("Motion already finalized")
	}
	now := time.Now()
	motion.Status = store.MotionFinalized
	motion.FinalizedAt = &now
	m.motions[motion.ID] = motion
	approvalID := uuid.NewString()
	m.approvals["motion:"+motion.ID] = approvalID
	return approvalID, nil
}

func (m *memStore) ApproveMinutes(_ context.Context, req store.ApprovalRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ApproveMinutes")
	roster, ok := m.boardMembers[req.SubjectID]
	if !ok {
		return "", raise("Meeting not found")
	}
	if _, ok := roster[req.ApproverID]; !ok {
		return "", raise("Caller must be an active board member")
	}
	if _, ok := m.approvals["minutes:"+req.SubjectID]; ok {
		return "", raise("Minutes already approved")
	}
	approvalID := uuid.NewString()
	m.approvals["minutes:"+req.SubjectID] = approvalID
	return approvalID, nil
}

func (m *memStore) CreateBoardPacket(_ context.Context, entityID, meetingID, title, _ string) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("CreateBoardPacket")
	if _, ok := m.meetingOwner[meetingID]; !ok {
		return "", "", raise("Meeting not found")
	}
	if _, ok := m.packets[meetingID]; ok {
		return "", "", raise("Board packet already exists")
	}
	version := store.DocumentVersion{
		ID:            uuid.NewString(),
		DocumentID:    uuid.NewString(),
		EntityID:      entityID,
		Status:        store.VersionDraft,
		VersionNumber: 1,
		UpdatedAt:     time.Now(),
	}
	m.versions[version.ID] = version
	m.packets[meetingID] = store.Packet{
		MeetingID:  meetingID,
		DocumentID: version.DocumentID,
		Title:      title,
		Status:     store.VersionDraft,
		Current:    version,
	}
	return version.DocumentID, version.ID, nil
}

func (m *memStore) GetPacket(_ context.Context, meetingID string) (store.Packet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("GetPacket")
	packet, ok := m.packets[meetingID]
	if !ok {
		return store.Packet{}, sql.ErrNoRows
	}
	packet.Current = m.versions[packet.Current.ID]
	return packet, nil
}

func (m *memStore) GetPacketVersion(_ context.Context, entityID, meetingID, versionID string) (store.DocumentVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("GetPacketVersion")
	version, ok := m.versions[versionID]
	if !ok || version.EntityID != entityID || m.packets[meetingID].DocumentID != version.DocumentID {
		return store.DocumentVersion{}, sql.ErrNoRows
	}
	return version, nil
}

// addDocumentVersion stores a draft version of a document that is not any
// meeting's packet.
func (m *memStore) addDocumentVersion(entityID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	version := store.DocumentVersion{
		ID:            uuid.NewString(),
		DocumentID:    uuid.NewString(),
		EntityID:      entityID,
		Status:        store.VersionDraft,
		VersionNumber: 1,
		UpdatedAt:     time.Now(),
	}
	m.versions[version.ID] = version
	return version.ID
}

func (m *memStore) UpdateDraftVersionContent(_ context.Context, versionID, content string) (bool, error) {
	if m.beforeUpdate != nil {
		m.beforeUpdate(versionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("UpdateDraftVersionContent")
	version, ok := m.versions[versionID]
	if !ok || version.Status != store.VersionDraft {
		return false, nil
	}
	version.Content = content
	m.versions[versionID] = version
	return true, nil
}

func (m *memStore) ApproveDocumentVersion(_ context.Context, req store.ApprovalRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ApproveDocumentVersion")
	return m.approveVersionLocked(req.SubjectID)
}

func (m *memStore) approveVersionLocked(versionID string) (string, error) {
	version, ok := m.versions[versionID]
	if !ok {
		return "", raise("Document version not found")
	}
	if version.Status == store.VersionApproved {
		return "", raise("Document version already approved")
	}
	now := time.Now()
	version.Status = store.VersionApproved
	version.ApprovedAt = &now
	m.versions[versionID] = version
	approvalID := uuid.NewString()
	m.approvals["version:"+versionID] = approvalID
	return approvalID, nil
}

func (m *memStore) SetBoardPacketVersion(_ context.Context, meetingID, versionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("SetBoardPacketVersion")
	if m.setPacketErr != nil {
		return m.setPacketErr
	}
	if _, ok := m.meetingOwner[meetingID]; !ok {
		return raise("Meeting not found")
	}
	packet, ok := m.packets[meetingID]
	if !ok || m.versions[versionID].DocumentID != packet.DocumentID {
		return raise("Document version not found")
	}
	packet.CanonicalVersionID = &versionID
	packet.Status = store.VersionApproved
	m.packets[meetingID] = packet
	return nil
}

type fakeAuthorizer struct {
	mu      sync.Mutex
	allowed map[string]bool
	err     error
	calls   int
}

func (f *fakeAuthorizer) CanApprove(_ context.Context, principalID, entityID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.allowed[principalID+"@"+entityID], nil
}

func (f *fakeAuthorizer) allow(principalID, entityID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.allowed == nil {
		f.allowed = map[string]bool{}
	}
	f.allowed[principalID+"@"+entityID] = true
}

func (f *fakeAuthorizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
