// Package report renders a model.Report as an HTML page, a CycloneDX BOM
// or a plain text summary.
package report

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/CZERTAINLY/netcheck/internal/model"
)

const (
	generatedLayout = "2006-01-02 15:04:05"
	fileLayout      = "20060102_150405"
)

//go:embed report.html.tmpl
var templateFS embed.FS

var htmlTemplate = template.Must(template.ParseFS(templateFS, "report.html.tmpl"))

// FileName returns the name of a report file generated at t,
// e.g. network_health_report_20261019_143000.html
func FileName(format string, t time.Time) (string, error) {
	base := "network_health_report_" + t.Format(fileLayout)
	switch format {
	case model.FormatHTML:
		return base + ".html", nil
	case model.FormatBOM:
		return base + ".cdx.json", nil
	default:
		return "", fmt.Errorf("unsupported report format %q", format)
	}
}

// Render writes report r in the given format.
func Render(w io.Writer, format string, r model.Report) error {
	switch format {
	case model.FormatHTML:
		return HTML(w, r)
	case model.FormatBOM:
		return BOM(w, r)
	default:
		return fmt.Errorf("unsupported report format %q", format)
	}
}

type htmlData struct {
	ID        string
	Generated string
	PortList  string
	Up        int
	Hosts     []model.HostResult
}

// HTML renders the status table. Host names are escaped by html/template.
func HTML(w io.Writer, r model.Report) error {
	generated := r.Finished
	if generated.IsZero() {
		generated = time.Now()
	}
	data := htmlData{
		ID:        r.ID.String(),
		Generated: generated.Format(generatedLayout),
		PortList:  joinPorts(r.Ports, ", "),
		Up:        r.UpCount(),
		Hosts:     r.Hosts,
	}
	if err := htmlTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("rendering html report: %w", err)
	}
	return nil
}

func joinPorts(ports []uint16, sep string) string {
	s := make([]string, len(ports))
	for i, p := range ports {
		s[i] = strconv.Itoa(int(p))
	}
	return strings.Join(s, sep)
}
