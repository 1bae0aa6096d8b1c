package notion

import (
	"bb-datasources/domain/portabletext"
)

// Conversion between Notion block payloads and portable text. Supported
// block types map to styled blocks; everything else becomes an "unknown"
// block carrying the original payload so a later conversion can round-trip
// it. Write-back replaces a page's blocks wholesale, which loses
// Notion-side block identity (REDESIGN note: a diff-and-patch path would
// be needed to preserve it).

// fields stripped from opaque payloads before they are appended back:
// Notion rejects server-assigned fields on create.
var serverAssignedFields = []string{
	"id", "object", "created_time", "last_edited_time", "created_by",
	"last_edited_by", "has_children", "archived", "in_trash", "parent",
}

// ToPortableText converts Notion blocks to a portable text document.
func ToPortableText(blocks []Object) []portabletext.Block {
	out := make([]portabletext.Block, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, blockToPortable(b))
	}
	return out
}

func blockToPortable(b Object) portabletext.Block {
	blockType, _ := b["type"].(string)
	payload, _ := b[blockType].(map[string]interface{})

	switch blockType {
	case "paragraph":
		return textBlock(portabletext.StyleNormal, "", payload)
	case "heading_1":
		return textBlock(portabletext.StyleH1, "", payload)
	case "heading_2":
		return textBlock(portabletext.StyleH2, "", payload)
	case "heading_3":
		return textBlock(portabletext.StyleH3, "", payload)
	case "bulleted_list_item":
		return textBlock(portabletext.StyleNormal, portabletext.ListBullet, payload)
	case "numbered_list_item":
		return textBlock(portabletext.StyleNormal, portabletext.ListNumber, payload)
	case "to_do":
		blk := textBlock(portabletext.StyleNormal, portabletext.ListBullet, payload)
		checked, _ := payload["checked"].(bool)
		blk.Raw = map[string]interface{}{"notionType": "to_do", "checked": checked}
		return blk
	case "quote":
		return textBlock(portabletext.StyleQuote, "", payload)
	case "callout":
		blk := textBlock(portabletext.StyleQuote, "", payload)
		blk.Raw = map[string]interface{}{"notionType": "callout"}
		if icon, ok := payload["icon"]; ok {
			blk.Raw["icon"] = icon
		}
		return blk
	case "code":
		blk := textBlock(portabletext.StyleCode, "", payload)
		blk.Language, _ = payload["language"].(string)
		return blk
	case "divider":
		return portabletext.Block{Type: portabletext.TypeDivider, Key: portabletext.NewKey()}
	case "image":
		return mediaBlock("image", payload)
	case "bookmark":
		return mediaBlock("bookmark", payload)
	case "equation":
		expr, _ := payload["expression"].(string)
		blk := portabletext.NewTextBlock(portabletext.StyleNormal,
			portabletext.NewSpan(expr, portabletext.MarkCode))
		blk.Raw = map[string]interface{}{"notionType": "equation", "expression": expr}
		return blk
	default:
		return portabletext.Block{
			Type: portabletext.TypeUnknown,
			Key:  portabletext.NewKey(),
			Raw:  sanitizePayload(b),
		}
	}
}

// textBlock converts a rich_text payload into a styled block.
func textBlock(style, listItem string, payload map[string]interface{}) portabletext.Block {
	blk := portabletext.NewTextBlock(style)
	blk.ListItem = listItem

	richText, _ := payload["rich_text"].([]interface{})
	for _, item := range richText {
		rt, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		span, markDef := richTextToSpan(rt)
		if markDef != nil {
			blk.MarkDefs = append(blk.MarkDefs, *markDef)
			span.Marks = append(span.Marks, markDef.Key)
		}
		blk.Children = append(blk.Children, span)
	}
	return blk
}

func richTextToSpan(rt map[string]interface{}) (portabletext.Span, *portabletext.MarkDef) {
	text, _ := rt["plain_text"].(string)
	if text == "" {
		if inner, ok := rt["text"].(map[string]interface{}); ok {
			text, _ = inner["content"].(string)
		}
	}

	span := portabletext.NewSpan(text)
	if ann, ok := rt["annotations"].(map[string]interface{}); ok {
		if b, _ := ann["bold"].(bool); b {
			span.Marks = append(span.Marks, portabletext.MarkStrong)
		}
		if b, _ := ann["italic"].(bool); b {
			span.Marks = append(span.Marks, portabletext.MarkEm)
		}
		if b, _ := ann["underline"].(bool); b {
			span.Marks = append(span.Marks, portabletext.MarkUnderline)
		}
		if b, _ := ann["strikethrough"].(bool); b {
			span.Marks = append(span.Marks, portabletext.MarkStrikeThrough)
		}
		if b, _ := ann["code"].(bool); b {
			span.Marks = append(span.Marks, portabletext.MarkCode)
		}
	}

	href := linkURL(rt)
	if href != "" {
		def := portabletext.MarkDef{Key: portabletext.NewKey(), Type: "link", Href: href}
		return span, &def
	}
	return span, nil
}

func linkURL(rt map[string]interface{}) string {
	if href, ok := rt["href"].(string); ok && href != "" {
		return href
	}
	if inner, ok := rt["text"].(map[string]interface{}); ok {
		if link, ok := inner["link"].(map[string]interface{}); ok {
			if u, ok := link["url"].(string); ok {
				return u
			}
		}
	}
	return ""
}

func mediaBlock(kind string, payload map[string]interface{}) portabletext.Block {
	url := mediaURL(kind, payload)
	blk := portabletext.NewTextBlock(portabletext.StyleNormal)
	span := portabletext.NewSpan(url)
	if url != "" {
		def := portabletext.MarkDef{Key: portabletext.NewKey(), Type: "link", Href: url}
		blk.MarkDefs = append(blk.MarkDefs, def)
		span.Marks = append(span.Marks, def.Key)
	}
	blk.Children = append(blk.Children, span)
	blk.Raw = map[string]interface{}{"notionType": kind, "url": url}
	return blk
}

func mediaURL(kind string, payload map[string]interface{}) string {
	if u, ok := payload["url"].(string); ok {
		return u
	}
	for _, variant := range []string{"external", "file"} {
		if inner, ok := payload[variant].(map[string]interface{}); ok {
			if u, ok := inner["url"].(string); ok {
				return u
			}
		}
	}
	return ""
}

func sanitizePayload(b Object) map[string]interface{} {
	out := make(map[string]interface{}, len(b))
	for k, v := range b {
		out[k] = v
	}
	for _, f := range serverAssignedFields {
		delete(out, f)
	}
	return out
}

// FromPortableText converts a portable text document back to Notion block
// payloads ready for append.
func FromPortableText(blocks []portabletext.Block) []Object {
	out := make([]Object, 0, len(blocks))
	for _, b := range blocks {
		if nb := portableToBlock(b); nb != nil {
			out = append(out, nb)
		}
	}
	return out
}

func portableToBlock(b portabletext.Block) Object {
	switch b.Type {
	case portabletext.TypeUnknown:
		if len(b.Raw) == 0 {
			return nil
		}
		return sanitizePayload(b.Raw)
	case portabletext.TypeDivider:
		return Object{"object": "block", "type": "divider", "divider": map[string]interface{}{}}
	case portabletext.TypeBlock:
		return portableTextToBlock(b)
	default:
		return nil
	}
}

func portableTextToBlock(b portabletext.Block) Object {
	// Special notion types preserved through Raw hints.
	if notionType, _ := b.Raw["notionType"].(string); notionType != "" {
		switch notionType {
		case "to_do":
			checked, _ := b.Raw["checked"].(bool)
			return Object{"object": "block", "type": "to_do", "to_do": map[string]interface{}{
				"rich_text": spansToRichText(b),
				"checked":   checked,
			}}
		case "callout":
			payload := map[string]interface{}{"rich_text": spansToRichText(b)}
			if icon, ok := b.Raw["icon"]; ok {
				payload["icon"] = icon
			}
			return Object{"object": "block", "type": "callout", "callout": payload}
		case "image", "bookmark":
			url, _ := b.Raw["url"].(string)
			if notionType == "image" {
				return Object{"object": "block", "type": "image", "image": map[string]interface{}{
					"external": map[string]interface{}{"url": url},
				}}
			}
			return Object{"object": "block", "type": "bookmark", "bookmark": map[string]interface{}{"url": url}}
		case "equation":
			expr, _ := b.Raw["expression"].(string)
			return Object{"object": "block", "type": "equation", "equation": map[string]interface{}{"expression": expr}}
		}
	}

	blockType := "paragraph"
	payload := map[string]interface{}{"rich_text": spansToRichText(b)}

	switch b.Style {
	case portabletext.StyleH1:
		blockType = "heading_1"
	case portabletext.StyleH2:
		blockType = "heading_2"
	case portabletext.StyleH3:
		blockType = "heading_3"
	case portabletext.StyleH4, portabletext.StyleH5, portabletext.StyleH6:
		// Notion has three heading levels; deeper ones degrade to h3.
		blockType = "heading_3"
	case portabletext.StyleQuote:
		blockType = "quote"
	case portabletext.StyleCode:
		blockType = "code"
		language := b.Language
		if language == "" {
			language = "plain text"
		}
		payload["language"] = language
	}

	switch b.ListItem {
	case portabletext.ListBullet:
		blockType = "bulleted_list_item"
	case portabletext.ListNumber:
		blockType = "numbered_list_item"
	}

	return Object{"object": "block", "type": blockType, blockType: payload}
}

func spansToRichText(b portabletext.Block) []interface{} {
	out := make([]interface{}, 0, len(b.Children))
	for _, span := range b.Children {
		textPayload := map[string]interface{}{"content": span.Text}
		if href := b.LinkHref(span); href != "" {
			textPayload["link"] = map[string]interface{}{"url": href}
		}
		item := map[string]interface{}{
			"type": "text",
			"text": textPayload,
			"annotations": map[string]interface{}{
				"bold":          span.HasMark(portabletext.MarkStrong),
				"italic":        span.HasMark(portabletext.MarkEm),
				"underline":     span.HasMark(portabletext.MarkUnderline),
				"strikethrough": span.HasMark(portabletext.MarkStrikeThrough),
				"code":          span.HasMark(portabletext.MarkCode),
			},
			"plain_text": span.Text,
		}
		out = append(out, item)
	}
	return out
}
