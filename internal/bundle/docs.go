package bundle

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"c3addon-builder/internal/ace"
	"c3addon-builder/internal/addon"
	"c3addon-builder/internal/eval"
	"c3addon-builder/internal/textutil"
)

// DocsOptions configures the ACE reference.
type DocsOptions struct {
	Addon *addon.Config
	Model *ace.Model
	// Categories maps category id to label. Missing ids fall back to the id.
	Categories *eval.Object
}

type docCtx struct {
	Name        string
	ID          string
	Version     string
	Type        string
	Author      string
	Description string
	Website     string
	Total       int
	Categories  []docCategory
}

type docCategory struct {
	Label    string
	ID       string
	Sections []docSection
}

type docSection struct {
	Title   string
	Records []docRecord
}

type docRecord struct {
	ID          string
	Text        string
	Description string
	Params      string
	Return      string
	Trigger     bool
}

const docsTemplate = `
# {{.Name}} ACE reference

**{{.ID}}** {{.Type}}{{if .Version}}, version {{.Version}}{{end}}{{if .Author}}, by {{.Author}}{{end}}.
{{if .Description}}
{{.Description}}
{{end}}{{if .Website}}
Website: {{.Website}}
{{end}}
{{.Total}} ACEs in {{len .Categories}} categories.
{{range .Categories}}
## {{.Label}}
{{range .Sections}}
### {{.Title}}

| ID | Text | Description | Parameters |{{if eq .Title "Expressions"}} Returns |{{end}}
|---|---|---|---|{{if eq .Title "Expressions"}}---|{{end}}
{{- $expr := eq .Title "Expressions"}}
{{range .Records -}}
| ` + "`{{.ID}}`" + ` | {{.Text}}{{if .Trigger}} (trigger){{end}} | {{.Description}} | {{.Params}} |{{if $expr}} {{.Return}} |{{end}}
{{end}}{{end}}{{end}}`

var docsTmpl = template.Must(template.New("docs").Parse(docsTemplate))

// GenerateDocs renders a Markdown reference of every record, grouped by
// category in first-use order. Output is deterministic and ends with "\n".
func GenerateDocs(opts DocsOptions) ([]byte, error) {
	if opts.Addon == nil || opts.Model == nil {
		return nil, fmt.Errorf("docs need an addon configuration and a model")
	}
	ctx := docCtx{
		Name:        firstNonEmpty(opts.Addon.Name, opts.Addon.ID),
		ID:          opts.Addon.ID,
		Version:     opts.Addon.Version,
		Type:        string(opts.Addon.Type),
		Author:      opts.Addon.Author,
		Description: cell(opts.Addon.Description),
		Website:     opts.Addon.Website,
		Total:       opts.Model.Len(),
	}
	titles := map[ace.Kind]string{
		ace.KindAction:     "Actions",
		ace.KindCondition:  "Conditions",
		ace.KindExpression: "Expressions",
	}
	for _, c := range opts.Model.Categories() {
		dc := docCategory{ID: c.ID, Label: c.ID}
		if opts.Categories != nil {
			if label, ok := opts.Categories.GetString(c.ID); ok && label != "" {
				dc.Label = label
			}
		}
		for _, k := range ace.Kinds {
			recs := c.List(k)
			if len(recs) == 0 {
				continue
			}
			sec := docSection{Title: titles[k]}
			for _, r := range recs {
				sec.Records = append(sec.Records, docRecord{
					ID:          r.ID,
					Text:        cell(firstNonEmpty(r.DisplayText, r.ListName, r.ID)),
					Description: cell(r.Description),
					Params:      params(r.Params),
					Return:      r.ReturnType,
					Trigger:     isTrigger(r),
				})
			}
			dc.Sections = append(dc.Sections, sec)
		}
		ctx.Categories = append(ctx.Categories, dc)
	}

	var buf bytes.Buffer
	if err := docsTmpl.Execute(&buf, ctx); err != nil {
		return nil, fmt.Errorf("render docs: %w", err)
	}
	text := string(textutil.NormalizeUTF8LF(buf.Bytes()))
	lines := strings.Split(strings.TrimLeft(text, "\n"), "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimRight(ln, " \t")
	}
	return textutil.EnsureTrailingLF([]byte(strings.TrimRight(strings.Join(lines, "\n"), "\n"))), nil
}

func params(ps []ace.Parameter) string {
	if len(ps) == 0 {
		return ""
	}
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		s := "`" + p.ID + "`: " + p.Type
		if len(p.Items) > 0 {
			keys := make([]string, 0, len(p.Items))
			for _, it := range p.Items {
				keys = append(keys, it.Key)
			}
			s += " (" + strings.Join(keys, ", ") + ")"
		}
		if p.Desc != "" {
			s += " " + p.Desc
		}
		parts = append(parts, cell(s))
	}
	return strings.Join(parts, "<br>")
}

func isTrigger(r *ace.Record) bool {
	if r.Options == nil {
		return false
	}
	v, ok := r.Options.Get("isTrigger")
	b, isBool := v.(bool)
	return ok && isBool && b
}

// cell makes s safe inside a Markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
