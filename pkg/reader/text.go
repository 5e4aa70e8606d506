// Package reader holds helpers shared by the ingestion sources.
package reader

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var whitespace = regexp.MustCompile(`[\s\p{Z}]+`)

// HTMLToText returns the visible text of an HTML alert body with entities
// decoded. Every tag boundary becomes a space; script and style contents and
// comments are dropped.
func HTMLToText(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	hidden := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			return CollapseSpace(b.String())
		case html.TextToken:
			if hidden == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken:
			if isHidden(z) {
				hidden++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			if isHidden(z) && hidden > 0 {
				hidden--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		}
	}
}

func isHidden(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch atom.Lookup(name) {
	case atom.Script, atom.Style, atom.Title:
		return true
	}
	return false
}

// CollapseSpace folds every run of whitespace, including non-breaking spaces,
// into a single space.
func CollapseSpace(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
