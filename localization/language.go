package localization

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type contextKey string

func (c contextKey) String() string {
	return "arche/localization/" + string(c)
}

const ctxKeyLanguage = contextKey("languageKey")

// ToContext adds language preferences to the current supplied context.
func ToContext(ctx context.Context, lang []string) context.Context {
	return context.WithValue(ctx, ctxKeyLanguage, lang)
}

// FromContext extracts language preferences from the supplied context if any exist.
func FromContext(ctx context.Context) []string {
	languages, ok := ctx.Value(ctxKeyLanguage).([]string)
	if !ok {
		return nil
	}

	return languages
}

// NormalizeLang canonicalises a language tag for use as a storage key.
// Tags that do not parse are lowercased and trimmed as-is.
func NormalizeLang(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return ""
	}

	tag, err := language.Parse(lang)
	if err != nil {
		return strings.ToLower(lang)
	}
	return tag.String()
}

// BaseLang strips one subtag level off a regionalised tag, so en-US
// becomes en. A bare base tag yields the empty string.
func BaseLang(lang string) string {
	idx := strings.LastIndex(lang, "-")
	if idx <= 0 {
		return ""
	}
	return lang[:idx]
}

// ExtractLanguageFromHTTPRequest reads language preferences off a request,
// a lang form value taking precedence over the Accept-Language header.
func ExtractLanguageFromHTTPRequest(req *http.Request) []string {
	lang := req.FormValue("lang")

	acceptedLang := ExtractLanguageFromHTTPHeader(req.Header)

	var languages []string
	if lang != "" {
		languages = append(languages, lang)
	}

	return append(languages, acceptedLang...)
}

func ExtractLanguageFromHTTPHeader(header http.Header) []string {
	acceptLanguageHeader := header.Get("Accept-Language")
	if acceptLanguageHeader == "" {
		return nil
	}

	var languages []string
	for _, part := range strings.Split(acceptLanguageHeader, ",") {
		part = strings.TrimSpace(part)
		if idx := strings.Index(part, ";"); idx >= 0 {
			part = part[:idx]
		}
		if part != "" {
			languages = append(languages, part)
		}
	}
	return languages
}
