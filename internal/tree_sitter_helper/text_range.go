package treesitterhelper

import (
	"bytes"

	"github.com/shopware/php-callcheck/internal/lsp/protocol"
)

// PositionForOffset maps a byte offset to a 0-based line and byte column. Offsets past the
// content are clamped to its end.
func PositionForOffset(content []byte, offset int) protocol.Position {
	offset = min(max(offset, 0), len(content))
	before := content[:offset]
	return protocol.Position{
		Line:      bytes.Count(before, []byte("\n")),
		Character: offset - (bytes.LastIndexByte(before, '\n') + 1),
	}
}

// OffsetForPosition maps a 0-based position to a byte offset. ok is false when the line does
// not exist or the column lies past its end.
func OffsetForPosition(content []byte, pos protocol.Position) (offset int, ok bool) {
	for line := 0; line < pos.Line; line++ {
		next := bytes.IndexByte(content[offset:], '\n')
		if next < 0 {
			return 0, false
		}
		offset += next + 1
	}

	lineEnd := bytes.IndexByte(content[offset:], '\n')
	if lineEnd < 0 {
		lineEnd = len(content) - offset
	}
	if pos.Character < 0 || pos.Character > lineEnd {
		return 0, false
	}
	return offset + pos.Character, true
}

// GetTextForRange returns the text a range covers, or "" when the range lies outside content
func GetTextForRange(content []byte, rng protocol.Range) string {
	start, ok := OffsetForPosition(content, rng.Start)
	if !ok {
		return ""
	}
	end, ok := OffsetForPosition(content, rng.End)
	if !ok || end < start {
		return ""
	}
	return string(content[start:end])
}
