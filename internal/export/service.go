package export

import (
	"context"
	"fmt"
)

type converter func(ctx context.Context, html, filename string) (*Result, error)

// Service turns packet Markdown into a finished document.
type Service struct {
	toPDF  converter
	toDOCX converter
}

func NewService() *Service {
	return &Service{toPDF: htmlToPDF, toDOCX: htmlToDOCX}
}

func (s *Service) Export(ctx context.Context, packet Packet, format Format) (*Result, error) {
	contentHTML, err := MarkdownToHTML(packet.ContentMd)
	if err != nil {
		return nil, err
	}

	html, err := RenderPacketHTML(TemplateData{
		EntityName:    packet.EntityName,
		MeetingTitle:  packet.MeetingTitle,
		Title:         packet.Title,
		VersionNumber: packet.VersionNumber,
		Status:        packet.Status,
		ContentHTML:   contentHTML,
		UpdatedAt:     packet.UpdatedAt,
		ApprovedAt:    packet.ApprovedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	filename := fmt.Sprintf("%s-v%d", sanitizeFilename(packet.Title), packet.VersionNumber)
	switch format {
	case FormatPDF:
		return s.toPDF(ctx, html, filename)
	case FormatDOCX:
		return s.toDOCX(ctx, html, filename)
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: filename + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
