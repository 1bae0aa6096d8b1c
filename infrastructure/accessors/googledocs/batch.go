package googledocs

import (
	"sort"
	"strings"
	"unicode/utf16"

	"bb-datasources/domain/portabletext"
)

// Batch-update emission: portable text blocks become one request script
// that deletes the existing body range, inserts a single concatenated text
// stream at index 1, then applies paragraph styles, bullets and text styles
// at computed index ranges. Docs indices count UTF-16 code units. The
// replace is not atomic; a failure mid-script can leave the document
// partially written.

type styleRange struct {
	start, end int
	named      string
	bullet     string
}

type textStyleRange struct {
	start, end int
	bold       bool
	italic     bool
	underline  bool
	strike     bool
	link       string
}

// BuildReplaceScript computes the batch-update requests that replace the
// document's current body with the given blocks.
func BuildReplaceScript(doc Document, blocks []portabletext.Block) []map[string]interface{} {
	var requests []map[string]interface{}

	if end := bodyEndIndex(doc); end > 2 {
		requests = append(requests, map[string]interface{}{
			"deleteContentRange": map[string]interface{}{
				"range": map[string]interface{}{"startIndex": 1, "endIndex": end - 1},
			},
		})
	}

	text, paragraphs, spans := serialize(blocks)
	if text == "" {
		return requests
	}
	requests = append(requests, map[string]interface{}{
		"insertText": map[string]interface{}{
			"location": map[string]interface{}{"index": 1},
			"text":     text,
		},
	})

	for _, p := range paragraphs {
		if p.named != "" && p.named != "NORMAL_TEXT" {
			requests = append(requests, map[string]interface{}{
				"updateParagraphStyle": map[string]interface{}{
					"range":          rangeBody(p.start, p.end),
					"paragraphStyle": map[string]interface{}{"namedStyleType": p.named},
					"fields":         "namedStyleType",
				},
			})
		}
		if p.bullet != "" {
			requests = append(requests, map[string]interface{}{
				"createParagraphBullets": map[string]interface{}{
					"range":        rangeBody(p.start, p.end),
					"bulletPreset": p.bullet,
				},
			})
		}
	}

	for _, s := range spans {
		style := map[string]interface{}{}
		var fields []string
		if s.bold {
			style["bold"] = true
			fields = append(fields, "bold")
		}
		if s.italic {
			style["italic"] = true
			fields = append(fields, "italic")
		}
		if s.underline {
			style["underline"] = true
			fields = append(fields, "underline")
		}
		if s.strike {
			style["strikethrough"] = true
			fields = append(fields, "strikethrough")
		}
		if s.link != "" {
			style["link"] = map[string]interface{}{"url": s.link}
			fields = append(fields, "link")
		}
		if len(fields) == 0 {
			continue
		}
		sort.Strings(fields)
		requests = append(requests, map[string]interface{}{
			"updateTextStyle": map[string]interface{}{
				"range":     rangeBody(s.start, s.end),
				"textStyle": style,
				"fields":    strings.Join(fields, ","),
			},
		})
	}
	return requests
}

func rangeBody(start, end int) map[string]interface{} {
	return map[string]interface{}{"startIndex": start, "endIndex": end}
}

// serialize flattens the blocks to the inserted text stream and collects
// the style ranges over it. Index 1 is where the insert lands.
func serialize(blocks []portabletext.Block) (string, []styleRange, []textStyleRange) {
	var b strings.Builder
	var paragraphs []styleRange
	var spans []textStyleRange
	index := 1

	emitParagraph := func(named, bullet string, children []portabletext.Span, block portabletext.Block) {
		start := index
		for _, span := range children {
			spanStart := index
			b.WriteString(span.Text)
			index += utf16Len(span.Text)
			ts := textStyleRange{
				start:     spanStart,
				end:       index,
				bold:      span.HasMark(portabletext.MarkStrong),
				italic:    span.HasMark(portabletext.MarkEm),
				underline: span.HasMark(portabletext.MarkUnderline),
				strike:    span.HasMark(portabletext.MarkStrikeThrough),
				link:      block.LinkHref(span),
			}
			if ts.bold || ts.italic || ts.underline || ts.strike || ts.link != "" {
				spans = append(spans, ts)
			}
		}
		b.WriteString("\n")
		index++
		paragraphs = append(paragraphs, styleRange{start: start, end: index, named: named, bullet: bullet})
	}

	for _, block := range blocks {
		switch block.Type {
		case portabletext.TypeBlock:
			named := blockStyleToNamedStyle[block.Style]
			if named == "" {
				named = "NORMAL_TEXT"
			}
			bullet := ""
			switch block.ListItem {
			case portabletext.ListBullet:
				bullet = "BULLET_DISC_CIRCLE_SQUARE"
			case portabletext.ListNumber:
				bullet = "NUMBERED_DECIMAL_ALPHA_ROMAN"
			}
			emitParagraph(named, bullet, block.Children, block)
		case portabletext.TypeTable:
			// Tables degrade to pipe-joined rows; the Docs table grid is
			// not reconstructed on write-back.
			for _, row := range block.Rows {
				emitParagraph("NORMAL_TEXT", "", []portabletext.Span{
					portabletext.NewSpan(strings.Join(row, " | ")),
				}, portabletext.Block{})
			}
		case portabletext.TypeBreak, portabletext.TypeDivider:
			emitParagraph("NORMAL_TEXT", "", nil, portabletext.Block{})
		case portabletext.TypeUnknown:
			if text := block.PlainText(); text != "" {
				emitParagraph("NORMAL_TEXT", "", []portabletext.Span{portabletext.NewSpan(text)}, portabletext.Block{})
			}
		}
	}
	return b.String(), paragraphs, spans
}

// utf16Len counts UTF-16 code units, the unit of Docs index arithmetic.
func utf16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}
