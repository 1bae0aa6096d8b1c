// Package portabletext is the neutral block/span document model used for
// block-level edits, plus the operation algebra applied to it and a stable
// Markdown renderer. The model is backend-agnostic: converters in the
// accessor packages translate to and from Notion blocks and Google Docs
// structural elements.
package portabletext

import (
	"strings"

	"github.com/google/uuid"
)

// Block types. TypeBlock carries spans; the others are custom blocks that
// carry their payload in the type-specific fields.
const (
	TypeBlock   = "block"
	TypeTable   = "table"
	TypeBreak   = "break"
	TypeDivider = "divider"
	TypeTOC     = "toc"
	TypeUnknown = "unknown"
)

// Block styles.
const (
	StyleNormal = "normal"
	StyleH1     = "h1"
	StyleH2     = "h2"
	StyleH3     = "h3"
	StyleH4     = "h4"
	StyleH5     = "h5"
	StyleH6     = "h6"
	StyleQuote  = "quote"
	StyleCode   = "code"
)

// List item kinds.
const (
	ListBullet = "bullet"
	ListNumber = "number"
)

// Span marks.
const (
	MarkStrong        = "strong"
	MarkEm            = "em"
	MarkUnderline     = "underline"
	MarkStrikeThrough = "strike-through"
	MarkCode          = "code"
)

// Span is an inline run of text with marks inside a block. A mark that is
// not one of the decorator constants refers to a MarkDef key on the
// enclosing block (links).
type Span struct {
	Type  string   `json:"_type"`
	Key   string   `json:"_key"`
	Text  string   `json:"text"`
	Marks []string `json:"marks,omitempty"`
}

// MarkDef carries out-of-band mark data; currently only links.
type MarkDef struct {
	Key  string `json:"_key"`
	Type string `json:"_type"`
	Href string `json:"href,omitempty"`
}

// Block is one unit of a portable text document.
//
// Invariants: every span's Text is a string (never unset to nil by any
// operation here); a TypeBlock block always has a non-nil Children slice;
// keys are unique within a document but carry no ordering.
type Block struct {
	Type     string    `json:"_type"`
	Key      string    `json:"_key"`
	Style    string    `json:"style,omitempty"`
	ListItem string    `json:"listItem,omitempty"`
	Level    int       `json:"level,omitempty"`
	Children []Span    `json:"children,omitempty"`
	MarkDefs []MarkDef `json:"markDefs,omitempty"`

	// TypeBlock with StyleCode
	Language string `json:"language,omitempty"`

	// TypeTable
	Rows [][]string `json:"rows,omitempty"`

	// TypeBreak
	BreakKind string `json:"breakKind,omitempty"`

	// TypeUnknown: the original backend payload, carried opaquely so a
	// later conversion can round-trip it.
	Raw map[string]interface{} `json:"raw,omitempty"`
}

// NewKey generates an opaque block/span key.
func NewKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// NewSpan builds a span with a fresh key.
func NewSpan(text string, marks ...string) Span {
	return Span{Type: "span", Key: NewKey(), Text: text, Marks: marks}
}

// NewTextBlock builds a styled block around the given spans. The children
// slice is always non-nil, even when empty.
func NewTextBlock(style string, spans ...Span) Block {
	if style == "" {
		style = StyleNormal
	}
	if spans == nil {
		spans = []Span{}
	}
	return Block{Type: TypeBlock, Key: NewKey(), Style: style, Children: spans}
}

// PlainText concatenates the visible text of a block.
func (b Block) PlainText() string {
	var sb strings.Builder
	for _, s := range b.Children {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// HasMark reports whether a span carries the given decorator mark.
func (s Span) HasMark(mark string) bool {
	for _, m := range s.Marks {
		if m == mark {
			return true
		}
	}
	return false
}

// LinkHref resolves a span's link mark against the block's mark defs.
// Returns "" when the span carries no link.
func (b Block) LinkHref(s Span) string {
	for _, m := range s.Marks {
		for _, def := range b.MarkDefs {
			if def.Key == m && def.Type == "link" {
				return def.Href
			}
		}
	}
	return ""
}

// Clone deep-copies a block so operation application never aliases caller
// memory.
func (b Block) Clone() Block {
	out := b
	if b.Children != nil {
		out.Children = make([]Span, len(b.Children))
		for i, s := range b.Children {
			cs := s
			cs.Marks = append([]string(nil), s.Marks...)
			out.Children[i] = cs
		}
	}
	out.MarkDefs = append([]MarkDef(nil), b.MarkDefs...)
	if b.Rows != nil {
		out.Rows = make([][]string, len(b.Rows))
		for i, row := range b.Rows {
			out.Rows[i] = append([]string(nil), row...)
		}
	}
	if b.Raw != nil {
		out.Raw = make(map[string]interface{}, len(b.Raw))
		for k, v := range b.Raw {
			out.Raw[k] = v
		}
	}
	return out
}

// CloneBlocks deep-copies a document.
func CloneBlocks(blocks []Block) []Block {
	out := make([]Block, len(blocks))
	for i, b := range blocks {
		out[i] = b.Clone()
	}
	return out
}
