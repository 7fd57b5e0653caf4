package api

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// textSanitizer strips markup from free-text profile fields.
type textSanitizer struct {
	policy *bluemonday.Policy
}

func newTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean removes every tag from value. Entities are decoded before the policy
// runs so encoded markup is stripped like literal markup; the policy output is
// stored as escaped, never decoded again.
func (s *textSanitizer) Clean(value string) string {
	return strings.TrimSpace(s.policy.Sanitize(html.UnescapeString(value)))
}
