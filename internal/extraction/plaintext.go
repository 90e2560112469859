package extraction

import (
	"context"
	"strings"
	"unicode/utf8"
)

// sectionRuneBudget bounds how much text one section gathers before the
// next paragraph starts a new one.
const sectionRuneBudget = 4000

// PlainTextExtractor sections UTF-8 plain text on blank lines. The first
// non-empty line stands in for a title when no hint is given.
type PlainTextExtractor struct{}

func NewPlainTextExtractor() *PlainTextExtractor {
	return &PlainTextExtractor{}
}

func (e *PlainTextExtractor) Extract(ctx context.Context, blob []byte, opts Options) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, Error.Wrap(err)
	}
	if !utf8.Valid(blob) {
		return Result{}, Error.New("content is not valid UTF-8 text")
	}
	text := strings.ReplaceAll(string(blob), "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return Result{}, Error.New("content is empty")
	}

	paragraphs := splitParagraphs(text)

	title := strings.TrimSpace(opts.TitleHint)
	if title == "" {
		title = firstLine(paragraphs[0])
	}

	var sections []Section
	var buf strings.Builder
	runes := 0
	flush := func() {
		if buf.Len() == 0 {
			return
		}
		body := buf.String()
		sections = append(sections, Section{
			Index: len(sections),
			Title: firstLine(body),
			Text:  body,
		})
		buf.Reset()
		runes = 0
	}
	for _, p := range paragraphs {
		n := utf8.RuneCountInString(p)
		if runes > 0 && runes+n > sectionRuneBudget {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(p)
		runes += n
	}
	flush()

	return Result{
		Manifest: ManifestSeed{
			Title:     title,
			Author:    strings.TrimSpace(opts.AuthorHint),
			ByteSize:  int64(len(blob)),
			CharCount: int64(utf8.RuneCountInString(text)),
		},
		Sections: sections,
	}, nil
}

func splitParagraphs(text string) []string {
	var out []string
	for _, block := range strings.Split(text, "\n\n") {
		if trimmed := strings.TrimSpace(block); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
