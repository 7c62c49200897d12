package moderation

import "regexp"

var linkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b[a-z][a-z0-9+.-]*://`),
	regexp.MustCompile(`(?i)\bwww\.`),
	regexp.MustCompile(`(?i)\b[a-z0-9-]+\.(com|net|org|io|co|me|app|dev|tech|ly|tv|to|gg|xyz|online|site|store|shop|biz|info|ru)\b`),
	regexp.MustCompile(`(?i)\b(bit\.ly|tinyurl\.com|t\.co|goo\.gl|ow\.ly|cutt\.ly|is\.gd)\b`),
	regexp.MustCompile(`(?i)\b(t\.me|telegram\.me|telegram\.dog)/`),
	regexp.MustCompile(`(?i)\bchat\.whatsapp\.com\b`),
	regexp.MustCompile(`(?i)\bwa\.me\b`),
	regexp.MustCompile(`(?i)\bdiscord\.gg/`),
}

// ContainsLink reports whether text contains anything that looks like a link or an invite.
func ContainsLink(text string) bool {
	if text == "" {
		return false
	}
	for _, pattern := range linkPatterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}
