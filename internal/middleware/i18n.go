package middleware

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type localeContextKey struct{}

var LocaleKey = localeContextKey{}

// Supported prompt languages; the first entry is the fallback.
var supportedLocales = []language.Tag{language.English, language.Portuguese}

var localeMatcher = language.NewMatcher(supportedLocales)

// I18N stores the request locale in the context: X-Locale first, then
// Accept-Language, then defaultLocale.
func I18N(defaultLocale string) func(http.Handler) http.Handler {
	fallback := MatchLocale(defaultLocale, "en")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale := detectLocale(r, fallback)
			ctx := context.WithValue(r.Context(), LocaleKey, locale)
			w.Header().Set("Content-Language", locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLocale(r *http.Request, fallback string) string {
	if v := strings.TrimSpace(r.Header.Get("X-Locale")); v != "" {
		return MatchLocale(v, fallback)
	}
	if v := strings.TrimSpace(r.Header.Get("Accept-Language")); v != "" {
		tags, _, err := language.ParseAcceptLanguage(v)
		if err == nil && len(tags) > 0 {
			if _, idx, conf := localeMatcher.Match(tags...); conf != language.No {
				return baseOf(supportedLocales[idx])
			}
		}
	}
	return fallback
}

// MatchLocale reduces a language tag such as "pt-BR" to a supported base
// language, or returns fallback.
func MatchLocale(raw, fallback string) string {
	tag, err := language.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	if _, idx, conf := localeMatcher.Match(tag); conf != language.No {
		return baseOf(supportedLocales[idx])
	}
	return fallback
}

func baseOf(tag language.Tag) string {
	base, _ := tag.Base()
	return base.String()
}

func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok {
		return v
	}
	return "en"
}
