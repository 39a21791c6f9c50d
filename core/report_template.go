package core

import (
	_ "embed"
	"html/template"
	"io"
	"time"
)

//go:embed report_template.html
var reportTemplateSource string

var reportTemplate = template.Must(template.New("report").Parse(reportTemplateSource))

var (
	propertyStatusOrder = []string{"available", "reserved", "sold"}
	clientStatusOrder   = []string{"active", "inactive", "completed"}
)

// StatusCount is one tile on the report summary.
type StatusCount struct {
	Name  string
	Count int
}

// ReportData is everything the report template renders.
type ReportData struct {
	RequestedBy      string
	GeneratedAt      time.Time
	Properties       []Property
	Clients          []Client
	Showings         []Showing
	PropertyStatuses []StatusCount
	ClientStatuses   []StatusCount
}

// NewReportData counts statuses in a fixed order so the summary layout is stable.
func NewReportData(requestedBy string, at time.Time, props []Property, clients []Client, showings []Showing) ReportData {
	pc := make(map[string]int, len(propertyStatusOrder))
	for _, p := range props {
		pc[p.Status]++
	}
	cc := make(map[string]int, len(clientStatusOrder))
	for _, c := range clients {
		cc[c.Status]++
	}
	d := ReportData{
		RequestedBy: requestedBy,
		GeneratedAt: at,
		Properties:  props,
		Clients:     clients,
		Showings:    showings,
	}
	for _, s := range propertyStatusOrder {
		d.PropertyStatuses = append(d.PropertyStatuses, StatusCount{Name: s, Count: pc[s]})
	}
	for _, s := range clientStatusOrder {
		d.ClientStatuses = append(d.ClientStatuses, StatusCount{Name: s, Count: cc[s]})
	}
	return d
}

// RenderReport writes the HTML report.
func RenderReport(w io.Writer, d ReportData) error {
	return reportTemplate.Execute(w, d)
}
