// Package markdown renders message bodies to sanitized HTML. The store
// renders authoritative records with the same processor the projector
// uses for optimistic ones, so reconciliation never changes the visible
// body.
package markdown

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// Chat messages support a deliberately small markdown subset: emphasis,
// code spans, fenced code blocks and strikethrough. Headings, lists and
// raw HTML stay plain text.
var mentionRegex = regexp.MustCompile(`@([A-Za-z0-9._-]+)`)

type TextProcessor struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func New() *TextProcessor {
	p := parser.NewParser(
		parser.WithBlockParsers(
			util.Prioritized(parser.NewFencedCodeBlockParser(), 700),
			util.Prioritized(parser.NewParagraphParser(), 1000),
		),
		parser.WithInlineParsers(
			util.Prioritized(parser.NewCodeSpanParser(), 100),
			util.Prioritized(parser.NewEmphasisParser(), 500),
		),
	)

	md := goldmark.New(
		goldmark.WithParser(p),
		goldmark.WithRendererOptions(html.WithUnsafe()),
		goldmark.WithExtensions(extension.Strikethrough),
	)

	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(regexp.MustCompile("^mention$")).OnElements("span")
	policy.AllowAttrs("data-user").OnElements("span")
	policy.RequireNoFollowOnLinks(false)
	policy.AllowRelativeURLs(true)

	return &TextProcessor{md: md, policy: policy}
}

// ProcessMessage renders the body and returns sanitized HTML plus the
// distinct user names mentioned in it, in order of first appearance.
func (tp *TextProcessor) ProcessMessage(text string) (string, []string) {
	rendered, _ := tp.renderText(text)
	processed, mentions := tp.processMentions(rendered)
	return tp.policy.Sanitize(processed), mentions
}

// processMentions converts @name tokens into mention spans.
func (tp *TextProcessor) processMentions(text string) (string, []string) {
	var mentions []string
	seen := make(map[string]struct{})

	processed := mentionRegex.ReplaceAllStringFunc(text, func(match string) string {
		name := strings.TrimPrefix(match, "@")
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			mentions = append(mentions, name)
		}
		return fmt.Sprintf(`<span class="mention" data-user="%s">@%s</span>`, name, name)
	})

	return processed, mentions
}

func (tp *TextProcessor) renderText(text string) (string, error) {
	var buf bytes.Buffer
	if err := tp.md.Convert([]byte(text), &buf); err != nil {
		return text, err
	}
	return strings.TrimSpace(buf.String()), nil
}
