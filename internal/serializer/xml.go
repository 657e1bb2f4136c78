package serializer

import (
	"fmt"
	"strings"

	"github.com/nibzard/ctxt/internal/models"
)

// EncodeXML renders blocks into a structured XML document. Each block
// becomes a numbered element tagged by kind, with the body as indented
// element text. An empty collection yields a root with no children.
func EncodeXML(name string, blocks []models.Block) string {
	var sb strings.Builder
	if name != "" {
		fmt.Fprintf(&sb, "<context_stack name=\"%s\">", escapeXML(name))
	} else {
		sb.WriteString("<context_stack>")
	}

	for i, b := range sorted(blocks) {
		tag := fmt.Sprintf("instruction_%d", i+1)
		if b.Kind == models.KindSource {
			tag = fmt.Sprintf("context_%d", i+1)
		}
		attrs := fmt.Sprintf(" type=\"%s\"", b.Kind)
		if b.Title != "" {
			attrs += fmt.Sprintf(" title=\"%s\"", escapeXML(b.Title))
		}
		if b.Origin != "" {
			attrs += fmt.Sprintf(" origin=\"%s\"", escapeXML(b.Origin))
		}
		fmt.Fprintf(&sb, "\n  <%s%s>\n%s\n  </%s>", tag, attrs, indentBody(b.Body), tag)
	}

	sb.WriteString("\n</context_stack>")
	return sb.String()
}

// escapeXML escapes the five XML special characters for use in both
// attribute values and element text.
func escapeXML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}

// indentBody escapes the body and indents every line, preserving newlines.
func indentBody(body string) string {
	lines := strings.Split(escapeXML(body), "\n")
	for i, line := range lines {
		lines[i] = "    " + line
	}
	return strings.Join(lines, "\n")
}
