package harness

import (
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultSolverTags are the solver-family suffixes stripped from instance ids.
var DefaultSolverTags = []string{"pulp", "solver", "baseline"}

var timestampPrefix = regexp.MustCompile(`^\d{8}T\d{6}Z_`)

// Canonicalizer derives the join key shared by every run of one instance.
type Canonicalizer struct {
	suffix *regexp.Regexp
}

func NewCanonicalizer(tags []string) *Canonicalizer {
	quoted := quoteTags(tags)
	if len(quoted) == 0 {
		quoted = quoteTags(DefaultSolverTags)
	}

	return &Canonicalizer{
		suffix: regexp.MustCompile(`(?i)_(` + strings.Join(quoted, "|") + `)$`),
	}
}

// Canonical strips leading timestamp tokens and trailing solver tags until
// nothing changes, so Canonical(Canonical(id)) == Canonical(id).
func (c *Canonicalizer) Canonical(id string) string {
	id = strings.TrimSpace(id)
	for {
		next := timestampPrefix.ReplaceAllString(id, "")
		next = c.suffix.ReplaceAllString(next, "")
		if next == id || next == "" {
			return id
		}
		id = next
	}
}

// FromLocator canonicalizes the file stem of a storage locator.
func (c *Canonicalizer) FromLocator(locator string) string {
	base := filepath.Base(strings.ReplaceAll(locator, `\`, "/"))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return c.Canonical(stem)
}

func quoteTags(tags []string) []string {
	quoted := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(tag))
	}
	return quoted
}
