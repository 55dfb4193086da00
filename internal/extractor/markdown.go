package extractor

import (
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// inlineParser only knows paragraphs, emphasis and code spans. Block syntax
// (headings, lists, quotes) is left as literal text because list handling
// belongs to SplitLines.
var inlineParser = parser.NewParser(
	parser.WithBlockParsers(
		util.Prioritized(parser.NewParagraphParser(), 1000),
	),
	parser.WithInlineParsers(
		util.Prioritized(parser.NewCodeSpanParser(), 100),
		util.Prioritized(parser.NewEmphasisParser(), 500),
	),
)

// stripEmphasis removes markdown emphasis and code-span markers, keeping the
// text they wrap. "I *really* mean it" becomes "I really mean it".
func stripEmphasis(s string) string {
	if !strings.ContainsAny(s, "*_`") {
		return s
	}

	src := []byte(s)
	doc := inlineParser.Parse(text.NewReader(src))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch v := n.(type) {
		case *ast.Text:
			if entering {
				b.Write(v.Segment.Value(src))
				if v.SoftLineBreak() || v.HardLineBreak() {
					b.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				b.Write(v.Value)
			}
		case *ast.Paragraph:
			if !entering && n.NextSibling() != nil {
				b.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
