package notion

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"bb-datasources/domain/portabletext"
)

// Markdown rendering of Notion objects. Pages render through the portable
// text pipeline; databases, users and blocks render their own summaries.

// objectID returns the id of a Notion object.
func objectID(obj Object) string {
	id, _ := obj["id"].(string)
	return id
}

// objectKind returns the object discriminator (page, database, block, user).
func objectKind(obj Object) string {
	kind, _ := obj["object"].(string)
	return kind
}

// objectTitle extracts the human title of a page or database. Pages keep the
// title inside the property whose type is "title"; databases carry a
// top-level title array.
func objectTitle(obj Object) string {
	if title := richTextPlain(obj["title"]); title != "" {
		return title
	}
	props, _ := obj["properties"].(map[string]interface{})
	for _, raw := range props {
		prop, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if propType, _ := prop["type"].(string); propType != "title" {
			continue
		}
		if title := richTextPlain(prop["title"]); title != "" {
			return title
		}
	}
	return "(untitled)"
}

// richTextPlain joins the plain_text of a rich text array.
func richTextPlain(raw interface{}) string {
	items, ok := raw.([]interface{})
	if !ok {
		return ""
	}
	var b strings.Builder
	for _, item := range items {
		rt, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if text, _ := rt["plain_text"].(string); text != "" {
			b.WriteString(text)
		}
	}
	return b.String()
}

// lastEditedTime parses the last_edited_time of an object, nil when absent.
func lastEditedTime(obj Object) *time.Time {
	raw, _ := obj["last_edited_time"].(string)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &t
}

// renderPage renders a page: title heading, metadata lines, then the body
// blocks through the portable text markdown renderer.
func renderPage(page Object, blocks []portabletext.Block) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", objectTitle(page))
	if t := lastEditedTime(page); t != nil {
		fmt.Fprintf(&b, "Last edited: %s\n\n", t.Format(time.RFC3339))
	}
	b.WriteString(portabletext.ToMarkdown(blocks))
	return b.String()
}

// renderDatabase renders the property schema and the pages of a database.
func renderDatabase(db Object, pages []Object) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s (database)\n\n", objectTitle(db))

	if props, ok := db["properties"].(map[string]interface{}); ok && len(props) > 0 {
		b.WriteString("## Properties\n\n")
		names := make([]string, 0, len(props))
		for name := range props {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			propType := ""
			if prop, ok := props[name].(map[string]interface{}); ok {
				propType, _ = prop["type"].(string)
			}
			fmt.Fprintf(&b, "- %s: %s\n", name, propType)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Pages (%d)\n\n", len(pages))
	for _, page := range pages {
		fmt.Fprintf(&b, "- %s (page/%s)\n", objectTitle(page), objectID(page))
	}
	return b.String()
}

// renderWorkspace groups search results into page and database lists.
func renderWorkspace(results []Object) string {
	var pages, databases []Object
	for _, obj := range results {
		switch objectKind(obj) {
		case "database":
			databases = append(databases, obj)
		default:
			pages = append(pages, obj)
		}
	}

	var b strings.Builder
	b.WriteString("# Workspace\n\n")
	fmt.Fprintf(&b, "## Pages (%d)\n\n", len(pages))
	for _, page := range pages {
		fmt.Fprintf(&b, "- %s (page/%s)\n", objectTitle(page), objectID(page))
	}
	fmt.Fprintf(&b, "\n## Databases (%d)\n\n", len(databases))
	for _, db := range databases {
		fmt.Fprintf(&b, "- %s (database/%s)\n", objectTitle(db), objectID(db))
	}
	return b.String()
}

// renderBlockDetail renders one block's own content and its children.
func renderBlockDetail(block Object, children []portabletext.Block) string {
	blockType, _ := block["type"].(string)

	var b strings.Builder
	fmt.Fprintf(&b, "# Block %s (%s)\n\n", objectID(block), blockType)
	own := ToPortableText([]Object{block})
	b.WriteString(portabletext.ToMarkdown(own))
	if len(children) > 0 {
		b.WriteString("\n## Children\n\n")
		b.WriteString(portabletext.ToMarkdown(children))
	}
	return b.String()
}

// renderUser renders type-specific user details.
func renderUser(user Object) string {
	name, _ := user["name"].(string)
	userType, _ := user["type"].(string)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", name)
	fmt.Fprintf(&b, "- Type: %s\n", userType)
	fmt.Fprintf(&b, "- ID: %s\n", objectID(user))
	switch userType {
	case "person":
		if person, ok := user["person"].(map[string]interface{}); ok {
			if email, _ := person["email"].(string); email != "" {
				fmt.Fprintf(&b, "- Email: %s\n", email)
			}
		}
	case "bot":
		if bot, ok := user["bot"].(map[string]interface{}); ok {
			if owner, ok := bot["owner"].(map[string]interface{}); ok {
				if ownerType, _ := owner["type"].(string); ownerType != "" {
					fmt.Fprintf(&b, "- Owner: %s\n", ownerType)
				}
			}
		}
	}
	return b.String()
}
