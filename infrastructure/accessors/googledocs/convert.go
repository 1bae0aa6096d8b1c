package googledocs

import (
	"strings"

	"bb-datasources/domain/portabletext"
)

// Conversion from a Google Docs document to portable text. Paragraphs
// become styled blocks, heading named styles map to h1..h6, tables become
// table blocks preserving row and column counts, and section or page
// breaks become break blocks. The reverse direction is a batch-update
// script, emitted in batch.go.

// namedStyleToBlockStyle maps Docs named paragraph styles.
var namedStyleToBlockStyle = map[string]string{
	"NORMAL_TEXT": portabletext.StyleNormal,
	"TITLE":       portabletext.StyleH1,
	"SUBTITLE":    portabletext.StyleH2,
	"HEADING_1":   portabletext.StyleH1,
	"HEADING_2":   portabletext.StyleH2,
	"HEADING_3":   portabletext.StyleH3,
	"HEADING_4":   portabletext.StyleH4,
	"HEADING_5":   portabletext.StyleH5,
	"HEADING_6":   portabletext.StyleH6,
}

// blockStyleToNamedStyle is the emit direction.
var blockStyleToNamedStyle = map[string]string{
	portabletext.StyleNormal: "NORMAL_TEXT",
	portabletext.StyleH1:     "HEADING_1",
	portabletext.StyleH2:     "HEADING_2",
	portabletext.StyleH3:     "HEADING_3",
	portabletext.StyleH4:     "HEADING_4",
	portabletext.StyleH5:     "HEADING_5",
	portabletext.StyleH6:     "HEADING_6",
}

// ToPortableText converts a document body to portable text blocks.
func ToPortableText(doc Document) []portabletext.Block {
	body, _ := doc["body"].(map[string]interface{})
	content, _ := body["content"].([]interface{})
	lists, _ := doc["lists"].(map[string]interface{})

	var out []portabletext.Block
	for _, raw := range content {
		element, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		switch {
		case element["paragraph"] != nil:
			para, _ := element["paragraph"].(map[string]interface{})
			out = append(out, paragraphToBlocks(para, lists)...)
		case element["table"] != nil:
			table, _ := element["table"].(map[string]interface{})
			out = append(out, tableToBlock(table))
		case element["sectionBreak"] != nil:
			// The leading section break opens the document; skip it.
			if len(out) > 0 {
				out = append(out, portabletext.Block{
					Type:      portabletext.TypeBreak,
					Key:       portabletext.NewKey(),
					BreakKind: "section",
				})
			}
		case element["tableOfContents"] != nil:
			out = append(out, portabletext.Block{
				Type: portabletext.TypeTOC,
				Key:  portabletext.NewKey(),
			})
		}
	}
	return out
}

// paragraphToBlocks converts one paragraph. A paragraph containing a page
// break element yields an extra break block.
func paragraphToBlocks(para map[string]interface{}, lists map[string]interface{}) []portabletext.Block {
	style := portabletext.StyleNormal
	if ps, ok := para["paragraphStyle"].(map[string]interface{}); ok {
		if named, _ := ps["namedStyleType"].(string); named != "" {
			if mapped, ok := namedStyleToBlockStyle[named]; ok {
				style = mapped
			}
		}
	}

	blk := portabletext.NewTextBlock(style)
	if bullet, ok := para["bullet"].(map[string]interface{}); ok {
		listID, _ := bullet["listId"].(string)
		blk.ListItem = listKind(listID, lists)
		if nesting, ok := bullet["nestingLevel"].(float64); ok {
			blk.Level = int(nesting) + 1
		} else {
			blk.Level = 1
		}
	}

	pageBreak := false
	elements, _ := para["elements"].([]interface{})
	for _, raw := range elements {
		element, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if element["pageBreak"] != nil {
			pageBreak = true
			continue
		}
		run, ok := element["textRun"].(map[string]interface{})
		if !ok {
			continue
		}
		span, markDef := textRunToSpan(run)
		if span.Text == "" {
			continue
		}
		if markDef != nil {
			blk.MarkDefs = append(blk.MarkDefs, *markDef)
			span.Marks = append(span.Marks, markDef.Key)
		}
		blk.Children = append(blk.Children, span)
	}

	out := []portabletext.Block{blk}
	if pageBreak {
		out = append(out, portabletext.Block{
			Type:      portabletext.TypeBreak,
			Key:       portabletext.NewKey(),
			BreakKind: "page",
		})
	}
	return out
}

// listKind decides bullet vs number from the list's first nesting level
// glyph. Glyph types are set for ordered lists only.
func listKind(listID string, lists map[string]interface{}) string {
	list, _ := lists[listID].(map[string]interface{})
	props, _ := list["listProperties"].(map[string]interface{})
	levels, _ := props["nestingLevels"].([]interface{})
	if len(levels) > 0 {
		if level, ok := levels[0].(map[string]interface{}); ok {
			if glyph, _ := level["glyphType"].(string); glyph != "" && glyph != "GLYPH_TYPE_UNSPECIFIED" {
				return portabletext.ListNumber
			}
		}
	}
	return portabletext.ListBullet
}

func textRunToSpan(run map[string]interface{}) (portabletext.Span, *portabletext.MarkDef) {
	content, _ := run["content"].(string)
	// Docs terminates every paragraph with a newline inside the last run.
	content = strings.TrimRight(content, "\n")

	span := portabletext.NewSpan(content)
	style, _ := run["textStyle"].(map[string]interface{})
	if b, _ := style["bold"].(bool); b {
		span.Marks = append(span.Marks, portabletext.MarkStrong)
	}
	if b, _ := style["italic"].(bool); b {
		span.Marks = append(span.Marks, portabletext.MarkEm)
	}
	if b, _ := style["underline"].(bool); b {
		span.Marks = append(span.Marks, portabletext.MarkUnderline)
	}
	if b, _ := style["strikethrough"].(bool); b {
		span.Marks = append(span.Marks, portabletext.MarkStrikeThrough)
	}

	if link, ok := style["link"].(map[string]interface{}); ok {
		if u, _ := link["url"].(string); u != "" {
			def := portabletext.MarkDef{Key: portabletext.NewKey(), Type: "link", Href: u}
			return span, &def
		}
	}
	return span, nil
}

// tableToBlock flattens a Docs table into a rows-of-strings table block.
func tableToBlock(table map[string]interface{}) portabletext.Block {
	blk := portabletext.Block{Type: portabletext.TypeTable, Key: portabletext.NewKey()}

	rows, _ := table["tableRows"].([]interface{})
	for _, rawRow := range rows {
		row, ok := rawRow.(map[string]interface{})
		if !ok {
			continue
		}
		cells, _ := row["tableCells"].([]interface{})
		var out []string
		for _, rawCell := range cells {
			cell, ok := rawCell.(map[string]interface{})
			if !ok {
				continue
			}
			out = append(out, cellText(cell))
		}
		blk.Rows = append(blk.Rows, out)
	}
	return blk
}

// cellText concatenates the visible text of a table cell's paragraphs.
func cellText(cell map[string]interface{}) string {
	content, _ := cell["content"].([]interface{})
	var parts []string
	for _, raw := range content {
		element, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		para, ok := element["paragraph"].(map[string]interface{})
		if !ok {
			continue
		}
		elements, _ := para["elements"].([]interface{})
		var b strings.Builder
		for _, rawEl := range elements {
			el, ok := rawEl.(map[string]interface{})
			if !ok {
				continue
			}
			if run, ok := el["textRun"].(map[string]interface{}); ok {
				text, _ := run["content"].(string)
				b.WriteString(strings.TrimRight(text, "\n"))
			}
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, " ")
}

// documentTitle returns the document's title.
func documentTitle(doc Document) string {
	title, _ := doc["title"].(string)
	if title == "" {
		return "(untitled)"
	}
	return title
}

// bodyEndIndex returns the endIndex of the last structural element, the
// exclusive upper bound of the body range.
func bodyEndIndex(doc Document) int {
	body, _ := doc["body"].(map[string]interface{})
	content, _ := body["content"].([]interface{})
	end := 1
	for _, raw := range content {
		element, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if idx, ok := element["endIndex"].(float64); ok && int(idx) > end {
			end = int(idx)
		}
	}
	return end
}
