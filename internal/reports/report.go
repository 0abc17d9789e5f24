package reports

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/tldr-it-stepankutaj/lunapad/internal/xinput"
)

// Report summarises one orchestrator session.
type Report struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Summary    string          `json:"summary"`
	Modules    []ModuleSummary `json:"modules"`
	Rejections []Rejection     `json:"rejections,omitempty"`
	Statistics Statistics      `json:"statistics"`
	Metadata   Metadata        `json:"metadata"`
}

// ModuleSummary is the lifecycle of one registered module.
type ModuleSummary struct {
	Name          string               `json:"name"`
	Libraries     uint32               `json:"libraries"`
	LibraryNames  []string             `json:"library_names"`
	LoadedAt      time.Time            `json:"loaded_at"`
	RemovedAt     *time.Time           `json:"removed_at,omitempty"`
	RemovedPass   int                  `json:"removed_pass"`
	Ticks         int                  `json:"ticks"`
	Reason        string               `json:"reason,omitempty"`
	Error         string               `json:"error,omitempty"`
	ExitDelivered bool                 `json:"exit_delivered"`
	LastState     *xinput.Capabilities `json:"last_state,omitempty"`
}

// Rejection is a module that never made it into the registry.
type Rejection struct {
	Module string    `json:"module"`
	Kind   string    `json:"kind"` // rejected or discarded
	Error  string    `json:"error,omitempty"`
	At     time.Time `json:"at"`
}

// Statistics contains session totals.
type Statistics struct {
	Loaded    int            `json:"loaded"`
	Rejected  int            `json:"rejected"`
	Discarded int            `json:"discarded"`
	Passes    int            `json:"passes"`
	Ticks     int            `json:"ticks"`
	ByReason  map[string]int `json:"by_reason"`
	Duration  time.Duration  `json:"duration"`
}

// Metadata contains report metadata.
type Metadata struct {
	StartedAt     time.Time `json:"started_at"`
	GeneratedAt   time.Time `json:"generated_at"`
	GeneratedBy   string    `json:"generated_by"`
	ToolVersion   string    `json:"tool_version"`
	WorkspacePath string    `json:"workspace_path,omitempty"`
	Device        string    `json:"device,omitempty"`
	Arguments     []string  `json:"arguments,omitempty"`
}

// Builder helps construct reports.
type Builder struct {
	report *Report
}

// NewBuilder creates a new report builder.
func NewBuilder() *Builder {
	return &Builder{
		report: &Report{
			Modules: make([]ModuleSummary, 0),
			Statistics: Statistics{
				ByReason: make(map[string]int),
			},
		},
	}
}

func (b *Builder) SetID(id string) *Builder {
	b.report.ID = id
	return b
}

// SetTitle sets the report title.
func (b *Builder) SetTitle(title string) *Builder {
	b.report.Title = title
	return b
}

func (b *Builder) AddModule(m ModuleSummary) *Builder {
	b.report.Modules = append(b.report.Modules, m)
	return b
}

func (b *Builder) AddRejection(r Rejection) *Builder {
	b.report.Rejections = append(b.report.Rejections, r)
	return b
}

// SetPasses records how many tick passes ran.
func (b *Builder) SetPasses(n int) *Builder {
	b.report.Statistics.Passes = n
	return b
}

// SetMetadata sets the report metadata.
func (b *Builder) SetMetadata(meta Metadata) *Builder {
	b.report.Metadata = meta
	return b
}

// Build finalizes and returns the report.
func (b *Builder) Build() *Report {
	r := b.report
	r.Statistics.Loaded = len(r.Modules)
	r.Statistics.Rejected, r.Statistics.Discarded, r.Statistics.Ticks = 0, 0, 0
	r.Statistics.ByReason = make(map[string]int)
	for _, m := range r.Modules {
		r.Statistics.Ticks += m.Ticks
		if m.Reason != "" {
			r.Statistics.ByReason[m.Reason]++
		}
	}
	for _, rej := range r.Rejections {
		if rej.Kind == "discarded" {
			r.Statistics.Discarded++
		} else {
			r.Statistics.Rejected++
		}
	}

	// Modules in load order.
	sort.SliceStable(r.Modules, func(i, j int) bool {
		return r.Modules[i].LoadedAt.Before(r.Modules[j].LoadedAt)
	})

	if r.Metadata.GeneratedAt.IsZero() {
		r.Metadata.GeneratedAt = time.Now()
	}
	if r.Metadata.GeneratedBy == "" {
		r.Metadata.GeneratedBy = "lunapad"
	}
	if !r.Metadata.StartedAt.IsZero() {
		r.Statistics.Duration = r.Metadata.GeneratedAt.Sub(r.Metadata.StartedAt)
	}
	if r.Title == "" {
		r.Title = "Session " + r.ID
	}
	r.Summary = generateSummary(r)
	return r
}

func generateSummary(r *Report) string {
	var sb strings.Builder
	s := r.Statistics
	if s.Loaded == 0 && s.Rejected == 0 && s.Discarded == 0 {
		return "No modules were loaded."
	}

	fmt.Fprintf(&sb, "%d module(s) ran for %d pass(es). ", s.Loaded, s.Passes)
	if n := s.ByReason["error"]; n > 0 {
		fmt.Fprintf(&sb, "%d stopped on a script error. ", n)
	}
	if n := s.ByReason["drained"]; n > 0 {
		fmt.Fprintf(&sb, "%d were still running when the loop ended. ", n)
	}
	if s.Rejected > 0 {
		fmt.Fprintf(&sb, "%d failed to load. ", s.Rejected)
	}
	if s.Discarded > 0 {
		fmt.Fprintf(&sb, "%d stopped during loading and were discarded. ", s.Discarded)
	}
	return strings.TrimSpace(sb.String())
}

// ExportJSON exports the report as JSON.
func (r *Report) ExportJSON(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return err
	}
	return w.Flush()
}

const markdownTemplate = `# {{ .Title }}

**Session:** {{ .ID }}
**Generated:** {{ .Metadata.GeneratedAt.Format "2006-01-02 15:04:05" }}
**Generated By:** {{ .Metadata.GeneratedBy }} {{ .Metadata.ToolVersion }}
{{- if .Metadata.Device }}
**Device:** {{ .Metadata.Device }}
{{- end }}
{{- if .Metadata.Arguments }}
**Arguments:** ` + "`{{ Join .Metadata.Arguments \" \" }}`" + `
{{- end }}

---

## Summary

{{ .Summary }}

## Statistics

| Metric | Value |
|--------|-------|
| Modules loaded | {{ .Statistics.Loaded }} |
| Load failures | {{ .Statistics.Rejected }} |
| Discarded | {{ .Statistics.Discarded }} |
| Passes | {{ .Statistics.Passes }} |
| Ticks delivered | {{ .Statistics.Ticks }} |
| Duration | {{ .Statistics.Duration }} |

## Modules

| Module | Libraries | Ticks | Removed in pass | Reason | Exit |
|--------|-----------|-------|-----------------|--------|------|
{{ range .Modules }}| {{ .Name }} | {{ Join .LibraryNames "," }} | {{ .Ticks }} | {{ .RemovedPass }} | {{ .Reason }} | {{ if .ExitDelivered }}yes{{ else }}no{{ end }} |
{{ end }}
{{- range .Modules }}{{ if .Error }}
### {{ .Name }}

` + "```" + `
{{ .Error }}
` + "```" + `
{{ end }}{{ end }}
{{- if .Rejections }}
## Not loaded

{{ range .Rejections }}- **{{ .Module }}** ({{ .Kind }}){{ if .Error }}: {{ .Error }}{{ end }}
{{ end }}{{ end }}
---

*Report generated by lunapad*
`

var markdown = template.Must(template.New("report").Funcs(template.FuncMap{
	"Join": strings.Join,
}).Parse(markdownTemplate))

// ExportMarkdown exports the report as Markdown.
func (r *Report) ExportMarkdown(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return markdown.Execute(f, r)
}

// Export writes the report in format ("json" or "md") to path.
func (r *Report) Export(format, path string) error {
	switch format {
	case "json":
		return r.ExportJSON(path)
	case "md", "markdown":
		return r.ExportMarkdown(path)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// RenderToString renders the report to a string in the specified format.
func (r *Report) RenderToString(format string) (string, error) {
	var buf bytes.Buffer

	switch format {
	case "json":
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return "", err
		}
	case "md", "markdown":
		if err := markdown.Execute(&buf, r); err != nil {
			return "", err
		}
	case "text":
		fmt.Fprintf(&buf, "SESSION REPORT: %s\n", r.Title)
		buf.WriteString(strings.Repeat("=", 60) + "\n\n")
		fmt.Fprintf(&buf, "Generated: %s\n", r.Metadata.GeneratedAt.Format(time.RFC3339))
		fmt.Fprintf(&buf, "Passes: %d  Ticks: %d\n\n", r.Statistics.Passes, r.Statistics.Ticks)

		buf.WriteString("MODULES:\n")
		buf.WriteString(strings.Repeat("-", 40) + "\n")
		for _, m := range r.Modules {
			fmt.Fprintf(&buf, "%s  ticks=%d pass=%d reason=%s\n", m.Name, m.Ticks, m.RemovedPass, m.Reason)
			if m.Error != "" {
				fmt.Fprintf(&buf, "    error: %s\n", m.Error)
			}
		}
		for _, rej := range r.Rejections {
			fmt.Fprintf(&buf, "%s  %s %s\n", rej.Module, strings.ToUpper(rej.Kind), rej.Error)
		}
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}

	return buf.String(), nil
}
