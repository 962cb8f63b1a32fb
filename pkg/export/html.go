package export

import (
	"fmt"
	"html/template"
	"io"
)

var printTemplate = template.Must(template.New("print").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: Arial, sans-serif; font-size: 10pt; margin: 20px; }
h1 { font-size: 14pt; text-align: center; }
.meta { text-align: center; color: #555; margin-bottom: 12px; }
table { border-collapse: collapse; width: 100%; }
th { background: #4472C4; color: #fff; font-weight: bold; }
th, td { border: 1px solid #999; padding: 3px 6px; text-align: left; }
tr:nth-child(even) td { background: #f2f2f2; }
@media print { body { margin: 0; } thead { display: table-header-group; } }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="meta">Printed: {{.CreatedAt.Format "2006-01-02 15:04:05"}} | Records: {{len .Rows}}</div>
<table>
<thead><tr>{{range .Columns}}<th>{{.Name}}</th>{{end}}</tr></thead>
<tbody>
{{- range .Rows}}
<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{- end}}
</tbody>
</table>
</body>
</html>
`))

// WriteHTML пишет страницу для печати
func WriteHTML(w io.Writer, snap *Snapshot) error {
	if err := printTemplate.Execute(w, snap); err != nil {
		return fmt.Errorf("failed to render print view: %w", err)
	}
	return nil
}
