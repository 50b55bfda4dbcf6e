package core

import (
	"bufio"
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/standardbeagle/rubyidx/internal/types"
)

// magic comments that never document the declaration below them
var magicComments = []string{"frozen_string_literal:", "typed:", "encoding:", "coding:", "warn_indent:", "shareable_constant_value:"}

// Documentation returns the contiguous "#" comment block directly above a
// declaration, with comment markers stripped. Content is read from the
// index's content source, so unsaved edits are seen when the source is an
// overlay.
func (ix *Index) Documentation(e types.Entry) (string, error) {
	ix.mu.RLock()
	src := ix.content
	err := ix.readable()
	ix.mu.RUnlock()
	if err != nil {
		return "", err
	}

	ref := e.Decl().Doc
	if ref.IsZero() {
		return "", nil
	}
	content, err := src.Content(ref.Path)
	if err != nil {
		return "", fmt.Errorf("documentation for %s: %w", e.Decl().QualifiedName, err)
	}
	return commentAbove(content, ref.Line), nil
}

// commentAbove collects the comment lines ending right above the zero-based
// line
func commentAbove(content []byte, line int) string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for n := 0; n < line && scanner.Scan(); n++ {
		lines = append(lines, scanner.Text())
	}
	if scanner.Err() != nil || len(lines) < line {
		// the lines above were not all read
		return ""
	}

	var block []string
	for i := len(lines) - 1; i >= 0; i-- {
		text := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(text, "#") {
			break
		}
		body := strings.TrimPrefix(strings.TrimPrefix(text, "#"), " ")
		if isMagicComment(body) {
			break
		}
		block = append(block, body)
	}
	slices.Reverse(block)
	return strings.Join(block, "\n")
}

func isMagicComment(body string) bool {
	body = strings.TrimSpace(body)
	for _, m := range magicComments {
		if strings.HasPrefix(body, m) {
			return true
		}
	}
	return false
}
