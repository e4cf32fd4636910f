// Package i18n resolves the request language and renders response messages
// from an x/text catalog.
package i18n

import (
	"net/http"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// LangParam is the query parameter that overrides Accept-Language.
const LangParam = "lang"

// Bundle holds the message catalog and the supported languages.
type Bundle struct {
	catalog   *catalog.Builder
	supported []language.Tag
	matcher   language.Matcher
}

var defaultBundle = mustDefaultBundle()

// Default returns the bundle with the built-in English and Vietnamese messages.
func Default() *Bundle {
	return defaultBundle
}

// NewBundle creates an empty bundle. The first tag is the fallback language.
func NewBundle(supported ...language.Tag) *Bundle {
	if len(supported) == 0 {
		supported = []language.Tag{language.English}
	}
	return &Bundle{
		catalog:   catalog.NewBuilder(catalog.Fallback(supported[0])),
		supported: supported,
		matcher:   language.NewMatcher(supported),
	}
}

// Add registers messages for a language.
func (b *Bundle) Add(tag language.Tag, messages map[string]string) error {
	for key, msg := range messages {
		if err := b.catalog.SetString(tag, key, msg); err != nil {
			return err
		}
	}
	return nil
}

// Match returns the supported language closest to the given tags.
func (b *Bundle) Match(tags ...language.Tag) language.Tag {
	_, idx, _ := b.matcher.Match(tags...)
	return b.supported[idx]
}

// Printer returns a printer bound to the bundle's catalog.
func (b *Bundle) Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(b.Match(tag), message.Catalog(b.catalog))
}

// Translate renders key in tag, or returns key when no message exists.
func (b *Bundle) Translate(tag language.Tag, key string) string {
	return b.Printer(tag).Sprintf(key)
}

// ResolveTag picks the response language from ?lang= and then Accept-Language.
func (b *Bundle) ResolveTag(r *http.Request) language.Tag {
	if r == nil {
		return b.supported[0]
	}
	if v := strings.TrimSpace(r.URL.Query().Get(LangParam)); v != "" {
		if tag, err := language.Parse(v); err == nil {
			return b.Match(tag)
		}
	}
	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			return b.Match(tags...)
		}
	}
	return b.supported[0]
}

// Localize renders key in the language requested by r.
func (b *Bundle) Localize(r *http.Request, key string) string {
	return b.Translate(b.ResolveTag(r), key)
}

func mustDefaultBundle() *Bundle {
	b := NewBundle(language.English, language.Vietnamese)
	if err := b.Add(language.English, english); err != nil {
		panic(err)
	}
	if err := b.Add(language.Vietnamese, vietnamese); err != nil {
		panic(err)
	}
	return b
}
