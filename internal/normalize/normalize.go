// Package normalize renders heterogeneous source rows into the flat text
// representation that gets embedded. Rendering is deterministic: fields keep
// their source-defined order so identical input embeds identically across runs.
package normalize

import (
	"strings"

	"github.com/opsmind/monchat/internal/source"
)

// Text renders one raw row as embeddable text. Relational/CSV rows become
// "type=<kind> field=value ..."; log rows pass through trimmed. The second
// return is false for rows that normalize to nothing (blank log lines).
func Text(r source.Row) (string, bool) {
	if r.Fields == nil {
		line := strings.TrimSpace(r.Line)
		return line, line != ""
	}

	var b strings.Builder
	b.WriteString("type=")
	b.WriteString(r.Kind)
	for _, f := range r.Fields {
		b.WriteByte(' ')
		b.WriteString(f.Name)
		b.WriteByte('=')
		b.WriteString(f.Value)
	}
	return b.String(), true
}

// Texts renders a batch, dropping rows that normalize to nothing.
func Texts(rows []source.Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if text, ok := Text(r); ok {
			out = append(out, text)
		}
	}
	return out
}
