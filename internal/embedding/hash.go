// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

// Package embedding maintains the content-hash keyed vector cache: for
// each item it hashes (normalized text | author handle | sorted hashtags),
// looks the hash up in the cache, and only calls the embedding provider
// for misses, in batches.
package embedding

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// ContentHash derives the cache key for an item's embeddable content. Two
// items with the same normalized text, author, and hashtag set share one
// vector regardless of zone or provider.
func ContentHash(text, authorHandle string, hashtags []string) string {
	tags := make([]string, len(hashtags))
	for i, t := range hashtags {
		tags[i] = strings.ToLower(strings.TrimSpace(t))
	}
	sort.Strings(tags)

	var b strings.Builder
	b.WriteString(normalizeText(text))
	b.WriteByte('|')
	b.WriteString(strings.ToLower(strings.TrimSpace(authorHandle)))
	b.WriteByte('|')
	b.WriteString(strings.Join(tags, ","))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// normalizeText lowercases and collapses runs of whitespace so trivial
// formatting differences don't defeat the cache.
func normalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// EmbeddingText is the string actually sent to the embedding provider for
// an item; it mirrors the hash input so cache entries and vectors always
// describe the same content.
func EmbeddingText(text, authorHandle string, hashtags []string) string {
	tags := make([]string, len(hashtags))
	for i, t := range hashtags {
		tags[i] = strings.ToLower(strings.TrimSpace(t))
	}
	sort.Strings(tags)

	parts := []string{normalizeText(text)}
	if authorHandle != "" {
		parts = append(parts, "@"+strings.ToLower(authorHandle))
	}
	if len(tags) > 0 {
		parts = append(parts, strings.Join(tags, " "))
	}
	return strings.Join(parts, " ")
}
