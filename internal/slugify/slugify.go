// Package slugify derives URL slugs for categories, tags and collections.
package slugify

import (
	"regexp"
	"strings"

	"github.com/gosimple/slug"
)

var (
	// slug.Make spells out & and @; they are dropped like any other punctuation.
	symbolStripper = strings.NewReplacer("'", "", "’", "", "`", "", "&", "", "@", "")
	separatorRun   = regexp.MustCompile(`[-_]+`)
)

// Make lowercases the input, strips punctuation, joins words with single hyphens and
// trims leading and trailing hyphens. Make(Make(s)) == Make(s).
func Make(value string) string {
	base := slug.Make(symbolStripper.Replace(value))
	base = separatorRun.ReplaceAllString(base, "-")
	return strings.Trim(base, "-")
}
