// Package fingerprint derives a stable identity for a message's topic from
// its subject and body text, so that independently arriving copies of the
// same campaign letter always collide.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// maxBodyChars bounds how much of the normalized body preview participates in
// the digest. Campaign letters diverge in trailing personalization, so only
// the head is stable.
const maxBodyChars = 500

// emptySubjectSentinel replaces a blank subject in the digest input. The NUL
// bytes keep it from colliding with any real subject text, so genuinely
// empty-subject casework emails never match a campaign fingerprint.
const emptySubjectSentinel = "\x00empty-subject\x00"

var replyPrefix = regexp.MustCompile(`^(?i)(re|fw|fwd)\s*:\s*`)

// NormalizeSubject strips repeated reply/forward prefixes, collapses
// whitespace and lower-cases. A blank subject normalizes to "(no subject)"
// for display; the digest uses a separate sentinel.
func NormalizeSubject(subject string) string {
	s := normalizeSubject(subject)
	if s == "" {
		return "(no subject)"
	}
	return s
}

func normalizeSubject(subject string) string {
	s := strings.TrimSpace(subject)
	for {
		stripped := replyPrefix.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = strings.TrimSpace(stripped)
	}
	return strings.ToLower(collapseWhitespace(s))
}

// Fingerprint returns a stable hex digest over the normalized subject and
// body preview. Pure and deterministic: no I/O, no randomness.
func Fingerprint(subject, bodyPreview string) string {
	subj := normalizeSubject(subject)
	if subj == "" {
		subj = emptySubjectSentinel
	}

	body := strings.ToLower(collapseWhitespace(bodyPreview))
	if runes := []rune(body); len(runes) > maxBodyChars {
		body = string(runes[:maxBodyChars])
	}

	sum := sha256.Sum256([]byte(subj + "\n" + body))
	return hex.EncodeToString(sum[:])
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
