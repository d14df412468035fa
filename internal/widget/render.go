package widget

import (
	"fmt"
	"html/template"
	"io"
	"strings"
)

// pageTemplate はウィジェットのHTML断片。
// badgeLabel / alert-messages / token の各IDはフロントエンドのスクリプトが参照する。
var pageTemplate = template.Must(template.New("widget").Funcs(template.FuncMap{
	"classes": func(classes []string) string { return strings.Join(classes, " ") },
}).Parse(`<span id="badgeLabel" class="badge">{{.Badge}}</span>
<input type="hidden" id="token" value="{{.Token}}">
<div id="alert-messages">
{{- if .Alert}}{{.Alert}}{{else}}
{{- range .Elements}}
<div id="{{.ID}}" class="{{classes .Classes}}">{{.Text}}</div>
{{- end}}
{{end -}}
</div>
`))

// Render はスナップショットをHTML断片としてwに書き出す。
func Render(w io.Writer, s Snapshot) error {
	if err := pageTemplate.Execute(w, s); err != nil {
		return fmt.Errorf("ウィジェットの描画に失敗: %w", err)
	}
	return nil
}
