// Package i18n picks the language users are answered in.
package i18n

import "strings"

type Lang string

const (
	RU Lang = "ru"
	EN Lang = "en"
)

// fallbackRU lists language codes whose speakers get Russian texts.
var fallbackRU = []string{"ru", "uk", "be", "kk"}

// FromLanguageCode maps a Telegram language code to a supported language.
// An empty code means Telegram did not send one.
func FromLanguageCode(code string) Lang {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return RU
	}
	for _, prefix := range fallbackRU {
		if strings.HasPrefix(code, prefix) {
			return RU
		}
	}
	return EN
}

// Parse reads a value stored with WithLang. Anything unknown is RU.
func Parse(s string) Lang {
	if Lang(strings.ToLower(strings.TrimSpace(s))) == EN {
		return EN
	}
	return RU
}

// Pick returns the text for lang.
func Pick(lang Lang, ru, en string) string {
	if lang == EN {
		return en
	}
	return ru
}
