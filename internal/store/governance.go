package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type NewMotion struct {
	MeetingID   string
	Title       string
	Description string
	MovedBy     *string
	SecondedBy  *string
}

const motionColumns = `id, meeting_id, title, description, moved_by, seconded_by, status, created_at, finalized_at`

func scanMotion(row interface{ Scan(...any) error }) (Motion, error) {
	var m Motion
	err := row.Scan(&m.ID, &m.MeetingID, &m.Title, &m.Description, &m.MovedBy, &m.SecondedBy, &m.Status, &m.CreatedAt, &m.FinalizedAt)
	return m, err
}

func (s *PostgresStore) InsertMotion(ctx context.Context, in NewMotion) (Motion, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO motions (meeting_id, title, description, moved_by, seconded_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+motionColumns,
		in.MeetingID, in.Title, in.Description, in.MovedBy, in.SecondedBy,
	)
	motion, err := scanMotion(row)
	if err != nil {
		return Motion{}, fmt.Errorf("insert motion: %w", err)
	}
	return motion, nil
}

func (s *PostgresStore) ListMotions(ctx context.Context, meetingID string) ([]Motion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+motionColumns+`
		FROM motions
		WHERE meeting_id = $1
		ORDER BY created_at ASC, id ASC
	`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("list motions: %w", err)
	}
	defer rows.Close()

	motions := make([]Motion, 0)
	for rows.Next() {
		motion, err := scanMotion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan motion: %w", err)
		}
		motions = append(motions, motion)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate motions: %w", err)
	}
	return motions, nil
}

// GetMotion returns sql.ErrNoRows for an unknown motion.
func (s *PostgresStore) GetMotion(ctx context.Context, motionID string) (Motion, error) {
	motion, err := scanMotion(s.db.QueryRowContext(ctx, `SELECT `+motionColumns+` FROM motions WHERE id=$1`, motionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Motion{}, err
		}
		return Motion{}, fmt.Errorf("get motion: %w", err)
	}
	return motion, nil
}

// UpsertVote records the principal's ballot. The procedure resolves the
// principal's board membership and replaces any earlier ballot.
func (s *PostgresStore) UpsertVote(ctx context.Context, motionID, principalID, value string) (Vote, error) {
	var vote Vote
	err := s.db.QueryRowContext(ctx, `
		SELECT motion_id, board_member_id, value, signed_at
		FROM upsert_motion_vote($1, $2, $3)
	`, motionID, principalID, value).Scan(&vote.MotionID, &vote.BoardMemberID, &vote.Value, &vote.SignedAt)
	if err != nil {
		return Vote{}, fmt.Errorf("upsert vote: %w", err)
	}
	return vote, nil
}

func (s *PostgresStore) ListVotes(ctx context.Context, motionID string) ([]Vote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT motion_id, board_member_id, value, signed_at
		FROM motion_votes
		WHERE motion_id = $1
		ORDER BY signed_at ASC, board_member_id ASC
	`, motionID)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	defer rows.Close()

	votes := make([]Vote, 0)
	for rows.Next() {
		var vote Vote
		if err := rows.Scan(&vote.MotionID, &vote.BoardMemberID, &vote.Value, &vote.SignedAt); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		votes = append(votes, vote)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate votes: %w", err)
	}
	return votes, nil
}

func (s *PostgresStore) FinalizeMotion(ctx context.Context, req ApprovalRequest) (string, error) {
	var approvalID string
	err := s.db.QueryRowContext(ctx, `SELECT finalize_motion($1, $2, $3, $4)`,
		req.SubjectID, req.ApproverID, nullIfEmpty(req.SignatureHash), req.Method,
	).Scan(&approvalID)
	if err != nil {
		return "", fmt.Errorf("finalize motion: %w", err)
	}
	return approvalID, nil
}

func (s *PostgresStore) ApproveMinutes(ctx context.Context, req ApprovalRequest) (string, error) {
	var approvalID string
	err := s.db.QueryRowContext(ctx, `SELECT approve_meeting_minutes($1, $2, $3, $4, $5)`,
		req.SubjectID, req.ApproverID, nullIfEmpty(req.SignatureHash), req.Method, nullIfEmpty(req.RequesterIP),
	).Scan(&approvalID)
	if err != nil {
		return "", fmt.Errorf("approve minutes: %w", err)
	}
	return approvalID, nil
}

func (s *PostgresStore) CreateBoardPacket(ctx context.Context, entityID, meetingID, title, createdBy string) (string, string, error) {
	var documentID, versionID string
	err := s.db.QueryRowContext(ctx, `
		SELECT document_id, version_id FROM create_board_packet($1, $2, $3, $4)
	`, entityID, meetingID, title, createdBy).Scan(&documentID, &versionID)
	if err != nil {
		return "", "", fmt.Errorf("create board packet: %w", err)
	}
	return documentID, versionID, nil
}

// GetPacketVersion reads a version only when its document is the board packet
// of the meeting and belongs to the entity. Any other version yields
// sql.ErrNoRows.
func (s *PostgresStore) GetPacketVersion(ctx context.Context, entityID, meetingID, versionID string) (DocumentVersion, error) {
	var v DocumentVersion
	err := s.db.QueryRowContext(ctx, `
		SELECT dv.id, dv.document_id, d.entity_id, dv.content, dv.status, dv.version_number, dv.updated_at, dv.approved_at
		FROM document_versions dv
		JOIN documents d ON d.id = dv.document_id
		JOIN board_meetings bm ON bm.board_packet_document_id = dv.document_id AND bm.id = $3
		WHERE dv.id = $1 AND d.entity_id = $2
	`, versionID, entityID, meetingID).Scan(&v.ID, &v.DocumentID, &v.EntityID, &v.Content, &v.Status, &v.VersionNumber, &v.UpdatedAt, &v.ApprovedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DocumentVersion{}, err
		}
		return DocumentVersion{}, fmt.Errorf("get packet version: %w", err)
	}
	return v, nil
}

// UpdateDraftVersionContent writes content only while the version is still a
// draft and reports whether a row changed.
func (s *PostgresStore) UpdateDraftVersionContent(ctx context.Context, versionID, content string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE document_versions
		SET content = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'draft'
	`, versionID, content)
	if err != nil {
		return false, fmt.Errorf("update draft version: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update draft version rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ApproveDocumentVersion(ctx context.Context, req ApprovalRequest) (string, error) {
	var approvalID string
	err := s.db.QueryRowContext(ctx, `SELECT approve_document_version($1, $2, $3, $4, $5)`,
		req.SubjectID, req.ApproverID, req.Method, nullIfEmpty(req.SignatureHash), nullIfEmpty(req.RequesterIP),
	).Scan(&approvalID)
	if err != nil {
		return "", fmt.Errorf("approve document version: %w", err)
	}
	return approvalID, nil
}

func (s *PostgresStore) SetBoardPacketVersion(ctx context.Context, meetingID, versionID string) error {
	if _, err := s.db.ExecContext(ctx, `SELECT set_board_packet_version($1, $2)`, meetingID, versionID); err != nil {
		return fmt.Errorf("set board packet version: %w", err)
	}
	return nil
}

// GetPacket returns the meeting's board packet with its current version.
// sql.ErrNoRows means the meeting has no packet yet.
func (s *PostgresStore) GetPacket(ctx context.Context, meetingID string) (Packet, error) {
	var p Packet
	err := s.db.QueryRowContext(ctx, `
		SELECT bm.id, bm.title, d.id, d.title, d.status, bm.board_packet_version_id,
			dv.id, dv.document_id, d.entity_id, dv.content, dv.status, dv.version_number, dv.updated_at, dv.approved_at
		FROM board_meetings bm
		JOIN documents d ON d.id = bm.board_packet_document_id
		JOIN document_versions dv ON dv.id = d.current_version_id
		WHERE bm.id = $1
	`, meetingID).Scan(
		&p.MeetingID, &p.MeetingTitle, &p.DocumentID, &p.Title, &p.Status, &p.CanonicalVersionID,
		&p.Current.ID, &p.Current.DocumentID, &p.Current.EntityID, &p.Current.Content, &p.Current.Status,
		&p.Current.VersionNumber, &p.Current.UpdatedAt, &p.Current.ApprovedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Packet{}, err
		}
		return Packet{}, fmt.Errorf("get packet: %w", err)
	}
	return p, nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
