package portabletext

import (
	"fmt"
	"strings"
)

// ToMarkdown renders a portable text document to Markdown with a stable,
// deterministic mapping: headings as #..######, bullets as "- ", numbered
// items with their sequence number, fenced code with language tag, quote as
// "> ", divider as ---, tables as pipe rows with a header separator.
// Underline has no Markdown form and is dropped.
func ToMarkdown(blocks []Block) string {
	var out []string
	numberCounter := 0

	for _, b := range blocks {
		if b.ListItem != ListNumber {
			numberCounter = 0
		}

		switch b.Type {
		case TypeBlock:
			out = append(out, renderTextBlock(b, &numberCounter))
		case TypeTable:
			out = append(out, renderTable(b))
		case TypeDivider, TypeBreak:
			out = append(out, "---")
		case TypeTOC:
			out = append(out, "[TOC]")
		case TypeUnknown:
			// Opaque payloads have no Markdown form; surface any text we
			// can see so content is not silently lost.
			if text := b.PlainText(); text != "" {
				out = append(out, text)
			}
		}
	}

	return strings.Join(out, "\n\n")
}

func renderTextBlock(b Block, numberCounter *int) string {
	text := renderSpans(b)

	if b.Style == StyleCode {
		return fmt.Sprintf("```%s\n%s\n```", b.Language, b.PlainText())
	}

	if b.ListItem != "" {
		indent := strings.Repeat("  ", max(b.Level-1, 0))
		if b.ListItem == ListNumber {
			*numberCounter++
			return fmt.Sprintf("%s%d. %s", indent, *numberCounter, text)
		}
		return fmt.Sprintf("%s- %s", indent, text)
	}

	switch b.Style {
	case StyleH1:
		return "# " + text
	case StyleH2:
		return "## " + text
	case StyleH3:
		return "### " + text
	case StyleH4:
		return "#### " + text
	case StyleH5:
		return "##### " + text
	case StyleH6:
		return "###### " + text
	case StyleQuote:
		return "> " + text
	default:
		return text
	}
}

func renderSpans(b Block) string {
	var sb strings.Builder
	for _, s := range b.Children {
		sb.WriteString(renderSpan(b, s))
	}
	return sb.String()
}

func renderSpan(b Block, s Span) string {
	text := s.Text
	if text == "" {
		return ""
	}

	if s.HasMark(MarkCode) {
		text = "`" + text + "`"
	}
	if s.HasMark(MarkStrikeThrough) {
		text = "~~" + text + "~~"
	}
	if s.HasMark(MarkEm) {
		text = "*" + text + "*"
	}
	if s.HasMark(MarkStrong) {
		text = "**" + text + "**"
	}
	if href := b.LinkHref(s); href != "" {
		text = fmt.Sprintf("[%s](%s)", text, href)
	}
	return text
}

func renderTable(b Block) string {
	if len(b.Rows) == 0 {
		return ""
	}

	var lines []string
	for i, row := range b.Rows {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = strings.ReplaceAll(cell, "|", `\|`)
		}
		lines = append(lines, "| "+strings.Join(cells, " | ")+" |")

		if i == 0 {
			seps := make([]string, len(row))
			for j := range seps {
				seps[j] = "---"
			}
			lines = append(lines, "| "+strings.Join(seps, " | ")+" |")
		}
	}
	return strings.Join(lines, "\n")
}
