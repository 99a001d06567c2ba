package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var packetTemplate = template.Must(template.New("packet.html").Funcs(template.FuncMap{
	"upper": strings.ToUpper,
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
}).ParseFS(templateFS, "templates/packet.html"))

type TemplateData struct {
	EntityName    string
	MeetingTitle  string
	Title         string
	VersionNumber int
	Status        string
	ContentHTML   template.HTML
	UpdatedAt     time.Time
	ApprovedAt    *time.Time
}

func RenderPacketHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := packetTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
