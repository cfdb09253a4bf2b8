package localization

import (
	"context"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pitabwire/util"
	"golang.org/x/text/language"
)

// Seeder loads translation files shipped with the service into the
// locale store at startup, so a fresh deployment serves messages before
// any administrative write happens.
type Seeder struct {
	manager     Manager
	defaultLang string
	folder      string
	languages   []string
}

func NewSeeder(manager Manager, translationsFolder, defaultLang string, languages ...string) *Seeder {
	if translationsFolder == "" {
		translationsFolder = "localization"
	}

	return &Seeder{
		manager:     manager,
		defaultLang: defaultLang,
		folder:      translationsFolder,
		languages:   languages,
	}
}

// Seed reads messages.<lang>.toml for every configured language and
// upserts each message into the store, then drops the cached entries
// for the languages that were reloaded.
func (s *Seeder) Seed(ctx context.Context) error {
	defaultTag, err := language.Parse(s.defaultLang)
	if err != nil {
		defaultTag = language.English
	}

	bundle := i18n.NewBundle(defaultTag)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	log := util.Log(ctx)

	for _, lang := range s.languages {
		path := fmt.Sprintf("%s/messages.%v.toml", s.folder, lang)
		if _, err = bundle.LoadMessageFile(path); err != nil {
			return fmt.Errorf("load translation file %s: %w", path, err)
		}

		codes, err0 := messageCodes(path)
		if err0 != nil {
			return err0
		}

		localizer := i18n.NewLocalizer(bundle, lang)
		seeded := 0
		for _, code := range codes {
			message, err1 := localizer.Localize(&i18n.LocalizeConfig{MessageID: code})
			if err1 != nil {
				log.WithError(err1).
					WithField("lang", lang).
					WithField("code", code).
					Warn("Seed -- skipping unlocalizable message")
				continue
			}

			if _, err1 = s.manager.Put(ctx, lang, code, message); err1 != nil {
				return fmt.Errorf("seed %s/%s: %w", lang, code, err1)
			}
			seeded++
		}

		if err = s.manager.InvalidateLang(ctx, lang); err != nil {
			return err
		}

		log.WithField("lang", lang).WithField("messages", seeded).Info("Seed -- translation file loaded")
	}

	return nil
}

// messageCodes flattens a translation file into its dotted message ids.
func messageCodes(path string) ([]string, error) {
	var raw map[string]any
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("decode translation file %s: %w", path, err)
	}

	var codes []string
	flattenCodes("", raw, &codes)
	sort.Strings(codes)
	return codes, nil
}

func flattenCodes(prefix string, node map[string]any, codes *[]string) {
	for key, value := range node {
		code := key
		if prefix != "" {
			code = prefix + "." + key
		}

		child, ok := value.(map[string]any)
		if !ok {
			*codes = append(*codes, code)
			continue
		}

		if isMessageTable(child) {
			*codes = append(*codes, code)
			continue
		}
		flattenCodes(code, child, codes)
	}
}

// isMessageTable detects a go-i18n message body such as
// {other = "...", description = "..."} as opposed to a nesting table.
func isMessageTable(node map[string]any) bool {
	messageKeys := map[string]bool{
		"id": true, "hash": true, "description": true,
		"zero": true, "one": true, "two": true, "few": true, "many": true, "other": true,
	}

	for key, value := range node {
		if _, nested := value.(map[string]any); nested {
			return false
		}
		if !messageKeys[key] {
			return false
		}
	}
	return len(node) > 0
}
