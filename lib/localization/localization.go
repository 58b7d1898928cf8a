// Package localization resolves user-facing bot replies through go-i18n,
// keyed on the locale Discord reports for each interaction.
package localization

import (
	"embed"
	"encoding/json"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

type LocalizationService struct {
	bundle *i18n.Bundle
}

var (
	globalService *LocalizationService
	once          sync.Once
)

func NewLocalizationService() *LocalizationService {
	once.Do(func() {
		bundle := i18n.NewBundle(language.English)
		bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

		entries, err := localeFS.ReadDir("locales")
		if err != nil {
			globalService = &LocalizationService{bundle: bundle}
			return
		}

		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
				if _, err := bundle.LoadMessageFileFS(localeFS, "locales/"+entry.Name()); err != nil {
					continue
				}
			}
		}

		globalService = &LocalizationService{bundle: bundle}
	})

	return globalService
}

func (ls *LocalizationService) GetLocalizer(lang string) *i18n.Localizer {
	return i18n.NewLocalizer(ls.bundle, lang, "en")
}

// SimpleLocalizer wraps i18n.Localizer with a more convenient API
type SimpleLocalizer struct {
	Localizer *i18n.Localizer
}

// T provides a concise way to localize messages
func (sl *SimpleLocalizer) T(messageID string) string {
	return sl.Localizer.MustLocalize(&i18n.LocalizeConfig{MessageID: messageID})
}

// TData localizes a message with template data, eg the tag of the member a
// command targeted.
func (sl *SimpleLocalizer) TData(messageID string, data map[string]any) string {
	return sl.Localizer.MustLocalize(&i18n.LocalizeConfig{MessageID: messageID, TemplateData: data})
}

// GetLocalizer creates a localizer based on the locale Discord attached to
// the interaction. Falls back to English.
func GetLocalizer(i *discordgo.InteractionCreate) *SimpleLocalizer {
	lang := "en"
	if i != nil {
		lang = string(i.Locale)
	}

	localizer := NewLocalizationService().GetLocalizer(lang)
	return &SimpleLocalizer{Localizer: localizer}
}

// Default returns an English localizer for messages that are not tied to an
// interaction, such as the startup panel.
func Default() *SimpleLocalizer {
	return &SimpleLocalizer{Localizer: NewLocalizationService().GetLocalizer("en")}
}
