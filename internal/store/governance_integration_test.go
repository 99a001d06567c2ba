package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type governanceFixture struct {
	store       *PostgresStore
	entityID    string
	otherID     string
	meetingID   string
	nextMeeting string
	chairID     string
	memberID    string
	outsider    string
}

func setupGovernanceFixture(t *testing.T) (governanceFixture, context.Context) {
	t.Helper()
	db, ctx := openTestDB(t)
	if _, err := ApplyMigrations(ctx, db, os.DirFS(filepath.Join("..", "..", "db", "migrations"))); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	f := governanceFixture{
		store:    NewPostgresStore(db),
		chairID:  "11111111-1111-4111-8111-111111111111",
		memberID: "22222222-2222-4222-8222-222222222222",
		outsider: "33333333-3333-4333-8333-333333333333",
	}

	mustScan(t, db.QueryRowContext(ctx, `
		INSERT INTO entities (type, slug, display_name) VALUES ('nonprofit', 'harbor-trust', 'Harbor Trust') RETURNING id
	`), &f.entityID)
	mustScan(t, db.QueryRowContext(ctx, `
		INSERT INTO entities (type, slug, display_name) VALUES ('district', 'north-district', 'North District') RETURNING id
	`), &f.otherID)

	var boardID string
	mustScan(t, db.QueryRowContext(ctx, `INSERT INTO boards (entity_id) VALUES ($1) RETURNING id`, f.entityID), &boardID)
	mustScan(t, db.QueryRowContext(ctx, `INSERT INTO board_meetings (board_id, title) VALUES ($1, 'March session') RETURNING id`, boardID), &f.meetingID)
	mustScan(t, db.QueryRowContext(ctx, `INSERT INTO board_meetings (board_id, title) VALUES ($1, 'April session') RETURNING id`, boardID), &f.nextMeeting)

	if _, err := db.ExecContext(ctx, `
		INSERT INTO board_members (board_id, user_id, role) VALUES ($1, $2, 'chair'), ($1, $3, 'member')
	`, boardID, f.chairID, f.memberID); err != nil {
		t.Fatalf("seed members: %v", err)
	}
	return f, ctx
}

func mustScan(t *testing.T, row *sql.Row, dest *string) {
	t.Helper()
	if err := row.Scan(dest); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func requireReason(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error containing %q", want)
	}
	reason, ok := Reason(err)
	if !ok {
		t.Fatalf("expected database reason, got %v", err)
	}
	if !strings.Contains(reason, want) {
		t.Fatalf("reason %q does not contain %q", reason, want)
	}
}

func TestResolveEntityAndBoundaryPostgres(t *testing.T) {
	f, ctx := setupGovernanceFixture(t)

	bySlug, err := f.store.ResolveEntity(ctx, "harbor-trust")
	if err != nil {
		t.Fatalf("resolve by slug: %v", err)
	}
	byID, err := f.store.ResolveEntity(ctx, f.entityID)
	if err != nil {
		t.Fatalf("resolve by id: %v", err)
	}
	if bySlug.ID != byID.ID || byID.ID != f.entityID {
		t.Fatalf("resolved ids differ: %s %s", bySlug.ID, byID.ID)
	}
	if _, err := f.store.ResolveEntity(ctx, "missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}

	if _, err := f.store.db.ExecContext(ctx, `
		INSERT INTO entities (type, slug, display_name) VALUES ('nonprofit', $1, 'Lookalike')
	`, f.entityID); err != nil {
		t.Fatalf("seed lookalike: %v", err)
	}
	for i := 0; i < 5; i++ {
		got, err := f.store.ResolveEntity(ctx, f.entityID)
		if err != nil {
			t.Fatalf("resolve with lookalike slug: %v", err)
		}
		if got.ID != f.entityID {
			t.Fatalf("resolved %s (%s), want id match %s", got.ID, got.Slug, f.entityID)
		}
	}

	owner, err := f.store.MeetingEntityID(ctx, f.meetingID)
	if err != nil {
		t.Fatalf("meeting entity: %v", err)
	}
	if owner != f.entityID {
		t.Fatalf("meeting owner = %s, want %s", owner, f.entityID)
	}

	chair, err := f.store.IsBoardChair(ctx, f.entityID, f.chairID)
	if err != nil || !chair {
		t.Fatalf("expected chair, got %v %v", chair, err)
	}
	chair, err = f.store.IsBoardChair(ctx, f.otherID, f.chairID)
	if err != nil || chair {
		t.Fatalf("chair of another entity: %v %v", chair, err)
	}
	admin, err := f.store.IsGlobalAdmin(ctx, f.chairID)
	if err != nil || admin {
		t.Fatalf("unexpected global admin: %v %v", admin, err)
	}
}

func TestMotionProceduresPostgres(t *testing.T) {
	f, ctx := setupGovernanceFixture(t)

	motion, err := f.store.InsertMotion(ctx, NewMotion{MeetingID: f.meetingID, Title: "Adopt budget"})
	if err != nil {
		t.Fatalf("insert motion: %v", err)
	}
	if motion.Status != MotionPending || motion.FinalizedAt != nil {
		t.Fatalf("unexpected new motion: %+v", motion)
	}

	if _, err := f.store.UpsertVote(ctx, motion.ID, f.memberID, "yes"); err != nil {
		t.Fatalf("vote yes: %v", err)
	}
	vote, err := f.store.UpsertVote(ctx, motion.ID, f.memberID, "no")
	if err != nil {
		t.Fatalf("vote no: %v", err)
	}
	if vote.Value != "no" {
		t.Fatalf("vote value = %q", vote.Value)
	}
	votes, err := f.store.ListVotes(ctx, motion.ID)
	if err != nil {
		t.Fatalf("list votes: %v", err)
	}
	if len(votes) != 1 || votes[0].Value != "no" {
		t.Fatalf("expected single no vote, got %+v", votes)
	}

	_, err = f.store.UpsertVote(ctx, motion.ID, f.outsider, "yes")
	requireReason(t, err, "must be an active board member")

	req := ApprovalRequest{SubjectID: motion.ID, ApproverID: f.chairID, Method: "clickwrap", SignatureHash: "sig"}
	approvalID, err := f.store.FinalizeMotion(ctx, req)
	if err != nil || approvalID == "" {
		t.Fatalf("finalize: %q %v", approvalID, err)
	}
	_, err = f.store.FinalizeMotion(ctx, req)
	requireReason(t, err, "already finalized")

	finalized, err := f.store.GetMotion(ctx, motion.ID)
	if err != nil {
		t.Fatalf("get motion: %v", err)
	}
	if finalized.Status != MotionFinalized || finalized.FinalizedAt == nil {
		t.Fatalf("motion not finalized: %+v", finalized)
	}
}

func TestMinutesApprovalPostgres(t *testing.T) {
	f, ctx := setupGovernanceFixture(t)

	req := ApprovalRequest{SubjectID: f.meetingID, ApproverID: f.memberID, Method: "in_app", RequesterIP: "10.0.0.7"}
	if _, err := f.store.ApproveMinutes(ctx, req); err != nil {
		t.Fatalf("approve minutes: %v", err)
	}
	_, err := f.store.ApproveMinutes(ctx, req)
	requireReason(t, err, "already approved")

	req.ApproverID = f.outsider
	_, err = f.store.ApproveMinutes(ctx, req)
	requireReason(t, err, "must be an active board member")
}

func TestBoardPacketSagaPostgres(t *testing.T) {
	f, ctx := setupGovernanceFixture(t)

	documentID, versionID, err := f.store.CreateBoardPacket(ctx, f.entityID, f.meetingID, "Board Packet", f.chairID)
	if err != nil {
		t.Fatalf("create packet: %v", err)
	}
	_, _, err = f.store.CreateBoardPacket(ctx, f.entityID, f.meetingID, "Board Packet", f.chairID)
	requireReason(t, err, "already exists")

	version, err := f.store.GetPacketVersion(ctx, f.entityID, f.meetingID, versionID)
	if err != nil {
		t.Fatalf("get version: %v", err)
	}
	if version.DocumentID != documentID || version.Status != VersionDraft || version.VersionNumber != 1 {
		t.Fatalf("unexpected version: %+v", version)
	}
	if _, err := f.store.GetPacketVersion(ctx, f.otherID, f.meetingID, versionID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows across entities, got %v", err)
	}
	if _, err := f.store.GetPacketVersion(ctx, f.entityID, f.nextMeeting, versionID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows across meetings, got %v", err)
	}

	updated, err := f.store.UpdateDraftVersionContent(ctx, versionID, "## Agenda")
	if err != nil || !updated {
		t.Fatalf("update draft: %v %v", updated, err)
	}

	approvalID, err := f.store.ApproveDocumentVersion(ctx, ApprovalRequest{
		SubjectID: versionID, ApproverID: f.chairID, Method: "clickwrap", SignatureHash: "abc123",
	})
	if err != nil || approvalID == "" {
		t.Fatalf("approve version: %q %v", approvalID, err)
	}
	if err := f.store.SetBoardPacketVersion(ctx, f.meetingID, versionID); err != nil {
		t.Fatalf("bind version: %v", err)
	}

	updated, err = f.store.UpdateDraftVersionContent(ctx, versionID, "## Changed")
	if err != nil {
		t.Fatalf("update approved: %v", err)
	}
	if updated {
		t.Fatal("approved version must not be editable")
	}

	packet, err := f.store.GetPacket(ctx, f.meetingID)
	if err != nil {
		t.Fatalf("get packet: %v", err)
	}
	if packet.Current.Status != VersionApproved || packet.Current.Content != "## Agenda" {
		t.Fatalf("unexpected packet version: %+v", packet.Current)
	}
	if packet.CanonicalVersionID == nil || *packet.CanonicalVersionID != versionID {
		t.Fatalf("canonical version = %v, want %s", packet.CanonicalVersionID, versionID)
	}
}

func TestSetBoardPacketVersionRejectsOtherMeetingsPacket(t *testing.T) {
	f, ctx := setupGovernanceFixture(t)

	_, march, err := f.store.CreateBoardPacket(ctx, f.entityID, f.meetingID, "March packet", f.chairID)
	if err != nil {
		t.Fatalf("create march packet: %v", err)
	}
	aprilDoc, april, err := f.store.CreateBoardPacket(ctx, f.entityID, f.nextMeeting, "April packet", f.chairID)
	if err != nil {
		t.Fatalf("create april packet: %v", err)
	}
	if _, err := f.store.ApproveDocumentVersion(ctx, ApprovalRequest{
		SubjectID: march, ApproverID: f.chairID, Method: "clickwrap",
	}); err != nil {
		t.Fatalf("approve march version: %v", err)
	}

	err = f.store.SetBoardPacketVersion(ctx, f.nextMeeting, march)
	requireReason(t, err, "Document version not found")

	packet, err := f.store.GetPacket(ctx, f.nextMeeting)
	if err != nil {
		t.Fatalf("get april packet: %v", err)
	}
	if packet.DocumentID != aprilDoc || packet.Current.ID != april || packet.CanonicalVersionID != nil {
		t.Fatalf("april packet changed: %+v", packet)
	}
}
