package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"civicboard/api/internal/archive"
	"civicboard/api/internal/auth"
	"civicboard/api/internal/config"
	"civicboard/api/internal/export"
	"civicboard/api/internal/governance"
	"civicboard/api/internal/metrics"
	"civicboard/api/internal/session"
	"civicboard/api/internal/store"
	"go.uber.org/zap"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Revocations interface {
	Revoke(ctx context.Context, jti, principalID string, expiresAt time.Time) error
	Lookup(ctx context.Context, jti string) (session.Revocation, bool, error)
	Ping(ctx context.Context) error
}

type Exporter interface {
	Export(ctx context.Context, packet export.Packet, format export.Format) (*export.Result, error)
}

type Archiver interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

type Session struct {
	PrincipalID string
	Name        string
	JTI         string
	ExpiresAt   time.Time
}

func (s Session) Caller(requesterIP string) governance.Caller {
	return governance.Caller{PrincipalID: s.PrincipalID, RequesterIP: requesterIP}
}

// Deps are the collaborators behind the HTTP surface. Revocations and
// Archive are optional.
type Deps struct {
	DB          Pinger
	Governance  *governance.Service
	Revocations Revocations
	Exporter    Exporter
	Archive     Archiver
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
}

type Service struct {
	cfg         config.Config
	db          Pinger
	governance  *governance.Service
	revocations Revocations
	exporter    Exporter
	archive     Archiver
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func New(cfg config.Config, deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	exporter := deps.Exporter
	if exporter == nil {
		exporter = export.NewService()
	}
	return &Service{
		cfg:         cfg,
		db:          deps.DB,
		governance:  deps.Governance,
		revocations: deps.Revocations,
		exporter:    exporter,
		archive:     deps.Archive,
		metrics:     deps.Metrics,
		logger:      logger,
	}
}

func (s *Service) Governance() *governance.Service {
	return s.governance
}

func (s *Service) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("database not configured")
	}
	return s.db.Ping(ctx)
}

// PingRevocations reports Redis health. configured is false when revocation
// is off.
func (s *Service) PingRevocations(ctx context.Context) (configured bool, err error) {
	if s.revocations == nil {
		return false, nil
	}
	return true, s.revocations.Ping(ctx)
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}
	if s.revocations != nil {
		rev, revoked, err := s.revocations.Lookup(ctx, claims.JTI)
		if err != nil {
			return Session{}, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			s.logger.Info("revoked token presented",
				zap.String("principal_id", rev.PrincipalID),
				zap.String("jti", claims.JTI),
				zap.Time("revoked_at", rev.RevokedAt),
			)
			return Session{}, auth.ErrInvalidToken
		}
	}
	return Session{
		PrincipalID: claims.Sub,
		Name:        claims.Name,
		JTI:         claims.JTI,
		ExpiresAt:   claims.ExpiresAt(),
	}, nil
}

func (s *Service) Logout(ctx context.Context, sess Session) error {
	if s.revocations == nil {
		return domainError(http.StatusServiceUnavailable, "REVOCATION_UNAVAILABLE", "Session revocation not configured", nil)
	}
	if err := s.revocations.Revoke(ctx, sess.JTI, sess.PrincipalID, sess.ExpiresAt); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.logger.Info("session revoked", zap.String("principal_id", sess.PrincipalID), zap.String("jti", sess.JTI))
	return nil
}

type PacketExport struct {
	Result     *export.Result
	ArchiveKey string
}

// ExportPacket renders the meeting's current packet version. Approved
// versions are also copied to the archive when one is configured; an archive
// failure is logged and does not fail the download.
func (s *Service) ExportPacket(ctx context.Context, caller governance.Caller, entityKey, meetingID, rawFormat string) (PacketExport, error) {
	if caller.PrincipalID == "" {
		return PacketExport{}, governance.ErrUnauthenticated()
	}
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return PacketExport{}, governance.ErrInvalid("format must be pdf, docx or html")
	}

	detail, err := s.governance.GetPacket(ctx, caller, entityKey, meetingID)
	if err != nil {
		return PacketExport{}, err
	}
	packet := detail.Packet
	result, err := s.exporter.Export(ctx, export.Packet{
		EntityName:    detail.Entity.DisplayName,
		MeetingTitle:  packet.MeetingTitle,
		Title:         packet.Title,
		VersionNumber: packet.Current.VersionNumber,
		Status:        packet.Current.Status,
		ContentMd:     packet.Current.Content,
		UpdatedAt:     packet.Current.UpdatedAt,
		ApprovedAt:    packet.Current.ApprovedAt,
	}, format)
	if err != nil {
		switch {
		case errors.Is(err, export.ErrPDFDependencyMissing), errors.Is(err, export.ErrDOCXDependencyMissing):
			return PacketExport{}, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export dependency not available", nil)
		default:
			return PacketExport{}, fmt.Errorf("export packet: %w", err)
		}
	}
	s.metrics.ObserveExport(string(format))

	out := PacketExport{Result: result}
	if s.archive == nil || packet.Current.Status != store.VersionApproved {
		return out, nil
	}
	key := archive.PacketKey(detail.Entity.Slug, meetingID, packet.Current.VersionNumber, string(format))
	if _, err := s.archive.Put(ctx, key, result.Data, result.MimeType); err != nil {
		s.logger.Warn("archive packet export failed", zap.String("key", key), zap.Error(err))
		return out, nil
	}
	out.ArchiveKey = key
	return out, nil
}

// observedAuthorizer counts every approval decision.
type observedAuthorizer struct {
	next    governance.Authorizer
	metrics *metrics.Metrics
}

func ObserveAuthorizer(next governance.Authorizer, m *metrics.Metrics) governance.Authorizer {
	return observedAuthorizer{next: next, metrics: m}
}

func (a observedAuthorizer) CanApprove(ctx context.Context, principalID, entityID string) (bool, error) {
	allowed, err := a.next.CanApprove(ctx, principalID, entityID)
	switch {
	case err != nil:
		a.metrics.ObserveAuthz("error")
	case allowed:
		a.metrics.ObserveAuthz("allow")
	default:
		a.metrics.ObserveAuthz("deny")
	}
	return allowed, err
}
