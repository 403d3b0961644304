// Package extract pulls fenced code and JSON blocks out of model text.
//
// Absence of a block is a normal outcome and is reported with ok == false.
package extract

import (
	"regexp"
	"strings"

	"github.com/aretw0/dsflow/pkg/domain"
)

// CodeMarker is the fence tag that marks code meant for execution.
const CodeMarker = "python-execute"

var (
	codeBlockRe = regexp.MustCompile("(?s)```" + CodeMarker + "(.+?)```")
	jsonBlockRe = regexp.MustCompile("(?s)```json(.+?)```")
	anyFenceRe  = regexp.MustCompile("(?s)```.*?```")
)

// CodeBlocks returns every executable block in text, trimmed, in order.
func CodeBlocks(text string) []string {
	matches := codeBlockRe.FindAllStringSubmatch(text, -1)
	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		if code := strings.TrimSpace(m[1]); code != "" {
			blocks = append(blocks, code)
		}
	}
	return blocks
}

// Code joins every executable block of text with newlines.
func Code(text string) (string, bool) {
	blocks := CodeBlocks(text)
	if len(blocks) == 0 {
		return "", false
	}
	return strings.Join(blocks, "\n"), true
}

// HasCode reports whether text contains at least one executable block.
func HasCode(text string) bool {
	return len(CodeBlocks(text)) > 0
}

// LastCode returns the code of the newest message containing executable
// blocks.
func LastCode(messages []domain.Message) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if code, ok := Code(messages[i].Content); ok {
			return code, true
		}
	}
	return "", false
}

// JSON returns the body of the first json block in text.
func JSON(text string) (string, bool) {
	m := jsonBlockRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	body := strings.TrimSpace(m[1])
	if body == "" {
		return "", false
	}
	return body, true
}

// Fence wraps code in an executable block.
func Fence(code string) string {
	return "```" + CodeMarker + "\n" + strings.TrimSpace(code) + "\n```"
}

// StripFences removes every fenced block from text.
func StripFences(text string) string {
	return strings.TrimSpace(anyFenceRe.ReplaceAllString(text, ""))
}
