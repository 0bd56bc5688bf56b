package services

import (
	"slices"
	"strings"
	"unicode"

	"miniappctl/internal/config"
)

// TitleCase upper-cases the first cased letter of every word and lower-cases
// the rest. A word starts after any rune that has no case, so digits and CJK
// text split words too ("neo2x" becomes "Neo2X").
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevCased := false
	for _, r := range s {
		cased := unicode.IsUpper(r) || unicode.IsLower(r) || unicode.IsTitle(r)
		switch {
		case cased && !prevCased:
			b.WriteRune(unicode.ToTitle(r))
		case cased:
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
		prevCased = cased
	}
	return b.String()
}

// DisplayName derives a human name from an app directory name
func DisplayName(dir string) string {
	return TitleCase(strings.ReplaceAll(dir, "-", " "))
}

// AppNames returns the English and Chinese names for an app directory,
// falling back to DisplayName for both when it is not in the translation table.
func AppNames(cfg *config.ManifestConfig, dir string) (string, string) {
	if tr, ok := cfg.Translations[dir]; ok {
		return tr.Name, tr.NameZh
	}
	name := DisplayName(dir)
	return name, name
}

// DeriveCategory matches the lower-cased app name against each category's
// keywords in configured order. The first category with a matching keyword wins.
func DeriveCategory(cfg *config.ManifestConfig, appName string) string {
	name := strings.ToLower(appName)
	for _, c := range cfg.Categories {
		for _, kw := range c.Keywords {
			if strings.Contains(name, kw) {
				return c.ID
			}
		}
	}
	return cfg.FallbackCategory
}

// ResolveCategory keeps members of the closed category set, maps legacy
// aliases and sends everything else to the fallback category.
func ResolveCategory(cfg *config.ManifestConfig, value string) string {
	if slices.Contains(cfg.CategoryIDs(), value) {
		return value
	}
	if mapped, ok := cfg.CategoryAliases[value]; ok {
		return mapped
	}
	return cfg.FallbackCategory
}
