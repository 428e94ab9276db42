// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package provider

import (
	"regexp"

	"github.com/lkmcompany/gorgone/internal/models"
)

var (
	hashtagPattern = regexp.MustCompile(`#([\p{L}0-9_]+)`)
	mentionPattern = regexp.MustCompile(`@([\p{L}0-9_]+)`)
	linkPattern    = regexp.MustCompile(`https?://`)
)

// ExtractEntities pulls hashtags and mentions out of free text, shared by
// every adapter's ParseItem.
func ExtractEntities(text string) []models.CanonicalEntity {
	var out []models.CanonicalEntity
	for _, m := range hashtagPattern.FindAllStringSubmatch(text, -1) {
		out = append(out, models.CanonicalEntity{Kind: models.EntityKindHashtag, Value: m[1]})
	}
	for _, m := range mentionPattern.FindAllStringSubmatch(text, -1) {
		out = append(out, models.CanonicalEntity{Kind: models.EntityKindMention, Value: m[1]})
	}
	return out
}

// HasLinks reports whether text contains an http(s) URL.
func HasLinks(text string) bool {
	return linkPattern.MatchString(text)
}
