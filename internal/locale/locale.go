// Package locale negotiates the player's language and serves the bank's
// UI strings and error messages.
package locale

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Bundle holds the message catalog for every supported language
type Bundle struct {
	catalog *catalog.Builder
	tags    []language.Tag
	matcher language.Matcher
	keys    []string
}

// New builds the bundle. The first supported language is the fallback.
func New() *Bundle {
	b := &Bundle{catalog: catalog.NewBuilder(catalog.Fallback(language.English))}

	for _, set := range []struct {
		tag      language.Tag
		messages map[string]string
	}{
		{language.English, english},
		{language.French, french},
	} {
		for key, msg := range set.messages {
			// Messages are compiled in, so a failure here is a programming error
			if err := b.catalog.SetString(set.tag, key, msg); err != nil {
				panic(fmt.Sprintf("locale: message %s/%s: %v", set.tag, key, err))
			}
		}
		b.tags = append(b.tags, set.tag)
	}

	b.matcher = language.NewMatcher(b.tags)
	for key := range english {
		b.keys = append(b.keys, key)
	}
	sort.Strings(b.keys)

	return b
}

// Match picks the supported language closest to an Accept-Language header
// value. An empty or malformed header yields the fallback.
func (b *Bundle) Match(acceptLanguage string) language.Tag {
	acceptLanguage = strings.TrimSpace(acceptLanguage)
	if acceptLanguage == "" {
		return b.tags[0]
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return b.tags[0]
	}
	_, idx, _ := b.matcher.Match(tags...)
	return b.tags[idx]
}

// Message returns the localized text for key, or key itself when unknown.
func (b *Bundle) Message(tag language.Tag, key string) string {
	return message.NewPrinter(tag, message.Catalog(b.catalog)).Sprintf(key)
}

// Locales returns every UI string for tag
func (b *Bundle) Locales(tag language.Tag) map[string]string {
	p := message.NewPrinter(tag, message.Catalog(b.catalog))
	out := make(map[string]string, len(b.keys))
	for _, key := range b.keys {
		out[key] = p.Sprintf(key)
	}
	return out
}

// Supported returns the supported language tags
func (b *Bundle) Supported() []language.Tag {
	return append([]language.Tag(nil), b.tags...)
}
