package app

import (
	"net/http"
	"time"

	"civicboard/api/internal/governance"
	"civicboard/api/internal/store"
	"github.com/go-chi/chi/v5"
)

func (s *HTTPServer) invalidBody(w http.ResponseWriter, r *http.Request, err error) {
	s.fail(w, r, governance.ErrInvalid(err.Error()))
}

func (s *HTTPServer) handleListMotions(w http.ResponseWriter, r *http.Request, session Session) {
	motions, err := s.service.Governance().ListMotions(r.Context(), session.Caller(requestIP(r)),
		chi.URLParam(r, "entityKey"), chi.URLParam(r, "meetingId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	items := make([]map[string]any, 0, len(motions))
	for _, motion := range motions {
		items = append(items, motionPayload(motion))
	}
	writeJSON(w, http.StatusOK, map[string]any{"motions": items})
}

func (s *HTTPServer) handleCreateMotion(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Title       string  `json:"title"`
		Description string  `json:"description"`
		MovedBy     *string `json:"movedBy"`
		SecondedBy  *string `json:"secondedBy"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.invalidBody(w, r, err)
		return
	}

	motion, err := s.service.Governance().CreateMotion(r.Context(), session.Caller(requestIP(r)),
		chi.URLParam(r, "entityKey"), chi.URLParam(r, "meetingId"),
		governance.CreateMotionInput{
			Title:       body.Title,
			Description: body.Description,
			MovedBy:     body.MovedBy,
			SecondedBy:  body.SecondedBy,
		})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"motion": motionPayload(motion)})
}

func (s *HTTPServer) handleListVotes(w http.ResponseWriter, r *http.Request, session Session) {
	votes, err := s.service.Governance().ListVotes(r.Context(), session.Caller(requestIP(r)),
		chi.URLParam(r, "entityKey"), chi.URLParam(r, "motionId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	items := make([]map[string]any, 0, len(votes))
	for _, vote := range votes {
		items = append(items, votePayload(vote))
	}
	writeJSON(w, http.StatusOK, map[string]any{"votes": items})
}

func (s *HTTPServer) handleCastVote(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Value string `json:"value"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.invalidBody(w, r, err)
		return
	}

	vote, err := s.service.Governance().CastVote(r.Context(), session.Caller(requestIP(r)),
		chi.URLParam(r, "entityKey"), chi.URLParam(r, "motionId"), body.Value)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vote": votePayload(vote)})
}

func (s *HTTPServer) handleFinalizeMotion(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		SignatureHash  string `json:"signatureHash"`
		ApprovalMethod string `json:"approvalMethod"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.invalidBody(w, r, err)
		return
	}

	approvalID, err := s.service.Governance().FinalizeMotion(r.Context(), session.Caller(requestIP(r)),
		chi.URLParam(r, "entityKey"), chi.URLParam(r, "motionId"),
		governance.FinalizeMotionInput{SignatureHash: body.SignatureHash, ApprovalMethod: body.ApprovalMethod})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"approvalId": approvalID})
}

func (s *HTTPServer) handleApproveMinutes(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		SignatureHash  string `json:"signatureHash"`
		ApprovalMethod string `json:"approvalMethod"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.invalidBody(w, r, err)
		return
	}

	approvalID, err := s.service.Governance().ApproveMinutes(r.Context(), session.Caller(requestIP(r)),
		chi.URLParam(r, "entityKey"), chi.URLParam(r, "meetingId"),
		governance.ApproveMinutesInput{SignatureHash: body.SignatureHash, ApprovalMethod: body.ApprovalMethod})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"approvalId": approvalID})
}

func (s *HTTPServer) handleCreatePacket(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Title string `json:"title"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.invalidBody(w, r, err)
		return
	}

	ref, err := s.service.Governance().CreatePacket(r.Context(), session.Caller(requestIP(r)),
		chi.URLParam(r, "entityKey"), chi.URLParam(r, "meetingId"), body.Title)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"documentId":    ref.DocumentID,
		"versionId":     ref.VersionID,
		"status":        ref.Status,
		"versionNumber": ref.VersionNumber,
	})
}

func (s *HTTPServer) handleGetPacket(w http.ResponseWriter, r *http.Request, session Session) {
	detail, err := s.service.Governance().GetPacket(r.Context(), session.Caller(requestIP(r)),
		chi.URLParam(r, "entityKey"), chi.URLParam(r, "meetingId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	packet := detail.Packet
	writeJSON(w, http.StatusOK, map[string]any{
		"packet": map[string]any{
			"documentId":         packet.DocumentID,
			"meetingId":          packet.MeetingID,
			"meetingTitle":       packet.MeetingTitle,
			"title":              packet.Title,
			"status":             packet.Status,
			"canonicalVersionId": packet.CanonicalVersionID,
			"currentVersion": map[string]any{
				"id":            packet.Current.ID,
				"status":        packet.Current.Status,
				"versionNumber": packet.Current.VersionNumber,
				"contentMd":     packet.Current.Content,
				"updatedAt":     packet.Current.UpdatedAt.UTC().Format(time.RFC3339),
				"approvedAt":    formatOptionalTime(packet.Current.ApprovedAt),
			},
		},
	})
}

func (s *HTTPServer) handleUpdatePacketVersion(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		ContentMd string `json:"contentMd"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.invalidBody(w, r, err)
		return
	}

	err := s.service.Governance().UpdatePacketContent(r.Context(), session.Caller(requestIP(r)),
		chi.URLParam(r, "entityKey"), chi.URLParam(r, "meetingId"), chi.URLParam(r, "versionId"), body.ContentMd)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleApprovePacketVersion(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		ApprovalMethod string `json:"approvalMethod"`
		SignatureHash  string `json:"signatureHash"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.invalidBody(w, r, err)
		return
	}

	approvalID, err := s.service.Governance().ApprovePacket(r.Context(), session.Caller(requestIP(r)),
		chi.URLParam(r, "entityKey"), chi.URLParam(r, "meetingId"), chi.URLParam(r, "versionId"),
		governance.ApprovePacketInput{ApprovalMethod: body.ApprovalMethod, SignatureHash: body.SignatureHash})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"approvalId": approvalID})
}

func (s *HTTPServer) handleExportPacket(w http.ResponseWriter, r *http.Request, session Session) {
	out, err := s.service.ExportPacket(r.Context(), session.Caller(requestIP(r)),
		chi.URLParam(r, "entityKey"), chi.URLParam(r, "meetingId"), r.URL.Query().Get("format"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename=\""+out.Result.Filename+"\"")
	w.Header().Set("Content-Type", out.Result.MimeType)
	if out.ArchiveKey != "" {
		w.Header().Set("X-Archive-Key", out.ArchiveKey)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Result.Data)
}

func motionPayload(motion store.Motion) map[string]any {
	return map[string]any{
		"id":          motion.ID,
		"meetingId":   motion.MeetingID,
		"title":       motion.Title,
		"description": motion.Description,
		"movedBy":     motion.MovedBy,
		"secondedBy":  motion.SecondedBy,
		"status":      motion.Status,
		"createdAt":   motion.CreatedAt.UTC().Format(time.RFC3339),
		"finalizedAt": formatOptionalTime(motion.FinalizedAt),
	}
}

func votePayload(vote store.Vote) map[string]any {
	return map[string]any{
		"motionId":      vote.MotionID,
		"boardMemberId": vote.BoardMemberID,
		"value":         vote.Value,
		"signedAt":      vote.SignedAt.UTC().Format(time.RFC3339),
	}
}

func formatOptionalTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
