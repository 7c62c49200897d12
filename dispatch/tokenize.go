package dispatch

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Command is a tokenized prefixed message.
type Command struct {
	// Name is the case-folded command token without the prefix.
	Name string
	Args []string
	// Raw is everything after the command token with spacing and case preserved.
	Raw string
}

// Tokenize splits text into a command when it starts with prefix.
// A "@botname" suffix on the command token is dropped.
func Tokenize(text, prefix string) (Command, bool) {
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return Command{}, false
	}

	body := strings.TrimSpace(text[len(prefix):])
	if body == "" {
		return Command{}, false
	}

	head, raw := body, ""
	if i := strings.IndexFunc(body, unicode.IsSpace); i >= 0 {
		head, raw = body[:i], body[i:]
	}
	head, _, _ = strings.Cut(head, "@")
	if head == "" {
		return Command{}, false
	}

	raw = strings.TrimSpace(raw)
	return Command{
		// Casers keep state, so a fresh one is used per call.
		Name: cases.Fold().String(head),
		Args: strings.Fields(raw),
		Raw:  raw,
	}, true
}
