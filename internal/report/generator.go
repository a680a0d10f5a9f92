package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sort"
	"time"

	"complyeye/internal/models"
	"complyeye/internal/store"

	"gopkg.in/gomail.v2"
)

// Generator builds periodic compliance-alerting summaries and emails
// them to the configured recipients.
type Generator struct {
	firings    *store.FiringStore
	dialer     *gomail.Dialer
	from       string
	recipients []string
	tmpl       *template.Template
}

type Summary struct {
	TenantID  string
	StartTime time.Time
	EndTime   time.Time

	TotalFirings    int
	CriticalFirings int
	WarningFirings  int
	InfoFirings     int
	Suppressed      int
	Unresolved      int

	TopRules []RuleSummary
}

type RuleSummary struct {
	RuleName    string
	Severity    models.Severity
	FiringCount int
}

func NewGenerator(firings *store.FiringStore, dialer *gomail.Dialer, from string, recipients []string) (*Generator, error) {
	tmpl, err := template.New("summary").Parse(summaryTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse report template: %w", err)
	}
	return &Generator{
		firings:    firings,
		dialer:     dialer,
		from:       from,
		recipients: recipients,
		tmpl:       tmpl,
	}, nil
}

// BuildSummary aggregates a tenant's firings over the window.
func (g *Generator) BuildSummary(ctx context.Context, tenantID string, start, end time.Time) (*Summary, error) {
	recs, err := g.firings.ListFirings(ctx, tenantID, "", 0)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch firings: %w", err)
	}

	summary := &Summary{
		TenantID:  tenantID,
		StartTime: start,
		EndTime:   end,
	}

	byRule := make(map[string]*RuleSummary)
	for i := range recs {
		rec := &recs[i]
		if rec.FiredAt.Before(start) || rec.FiredAt.After(end) {
			continue
		}

		summary.TotalFirings++
		switch rec.Severity {
		case models.SeverityCritical:
			summary.CriticalFirings++
		case models.SeverityWarning:
			summary.WarningFirings++
		case models.SeverityInfo:
			summary.InfoFirings++
		}
		if rec.Suppressed {
			summary.Suppressed++
		}
		if rec.Unresolved() && !rec.Suppressed {
			summary.Unresolved++
		}

		rs, ok := byRule[rec.RuleName]
		if !ok {
			rs = &RuleSummary{RuleName: rec.RuleName, Severity: rec.Severity}
			byRule[rec.RuleName] = rs
		}
		rs.FiringCount++
	}

	for _, rs := range byRule {
		summary.TopRules = append(summary.TopRules, *rs)
	}
	sort.Slice(summary.TopRules, func(i, j int) bool {
		return summary.TopRules[i].FiringCount > summary.TopRules[j].FiringCount
	})
	if len(summary.TopRules) > 10 {
		summary.TopRules = summary.TopRules[:10]
	}

	return summary, nil
}

// RenderHTML renders the summary for embedding in an email.
func (g *Generator) RenderHTML(summary *Summary) (string, error) {
	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, summary); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}

// Email builds and sends the summary for the window ending now.
func (g *Generator) Email(ctx context.Context, tenantID string, window time.Duration) error {
	if len(g.recipients) == 0 {
		return fmt.Errorf("no report recipients configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	end := time.Now()
	summary, err := g.BuildSummary(ctx, tenantID, end.Add(-window), end)
	if err != nil {
		return err
	}

	html, err := g.RenderHTML(summary)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", g.from)
	m.SetHeader("To", g.recipients...)
	m.SetHeader("Subject", fmt.Sprintf("ComplyEye alert summary for %s", tenantID))
	m.SetBody("text/html", html)

	return g.dialer.DialAndSend(m)
}

const summaryTemplate = `
<h2>Compliance alert summary: {{.TenantID}}</h2>
<p>{{.StartTime.Format "2006-01-02 15:04"}} &mdash; {{.EndTime.Format "2006-01-02 15:04"}}</p>
<table border="1" cellpadding="4">
  <tr><td>Total firings</td><td>{{.TotalFirings}}</td></tr>
  <tr><td>Critical</td><td>{{.CriticalFirings}}</td></tr>
  <tr><td>Warning</td><td>{{.WarningFirings}}</td></tr>
  <tr><td>Info</td><td>{{.InfoFirings}}</td></tr>
  <tr><td>Suppressed</td><td>{{.Suppressed}}</td></tr>
  <tr><td>Unresolved</td><td>{{.Unresolved}}</td></tr>
</table>
{{if .TopRules}}
<h3>Most active rules</h3>
<table border="1" cellpadding="4">
  <tr><th>Rule</th><th>Severity</th><th>Firings</th></tr>
  {{range .TopRules}}
  <tr><td>{{.RuleName}}</td><td>{{.Severity}}</td><td>{{.FiringCount}}</td></tr>
  {{end}}
</table>
{{end}}
`
