package wgconf

import "strings"

// Parse reads an INI-like WireGuard configuration document. It is total:
// lines that are neither a section header, a Key = Value property nor a
// comment are skipped, so a truncated or hand-edited document still yields
// every section that can be recognized.
func Parse(src []byte) *Document {
	doc := &Document{src: src}

	var current *Section

	// Comment line directly above a header becomes the section's comment
	// and extends its byte range, so a section can be located and spliced
	// together with its identifying comment.
	pendingComment := ""
	pendingStart := -1

	offset := 0
	text := string(src)
	for len(text) > 0 {
		line := text
		next := len(text)
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			line = text[:i]
			next = i + 1
		}
		lineStart := offset
		lineEnd := offset + next

		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			pendingComment, pendingStart = "", -1
		case strings.HasPrefix(trimmed, "#"):
			pendingComment = strings.TrimSpace(trimmed[1:])
			pendingStart = lineStart
		case strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]"):
			start := lineStart
			if pendingStart >= 0 {
				start = pendingStart
			}
			current = &Section{
				Name:    strings.TrimSpace(trimmed[1 : len(trimmed)-1]),
				Comment: pendingComment,
				start:   start,
				end:     lineEnd,
			}
			doc.Sections = append(doc.Sections, current)
			pendingComment, pendingStart = "", -1
		default:
			pendingComment, pendingStart = "", -1
			eq := strings.IndexByte(trimmed, '=')
			if eq < 0 || current == nil {
				break
			}
			key := strings.TrimSpace(trimmed[:eq])
			value := strings.TrimSpace(trimmed[eq+1:])
			if key == "" {
				break
			}
			current.Props = append(current.Props, Property{Key: key, Value: value})
			current.end = lineEnd
		}

		offset = lineEnd
		text = text[next:]
	}

	return doc
}
