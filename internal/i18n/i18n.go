// Package i18n holds the embedded message catalogs for the web UI.
// German is the reference language, English is the fallback
// translation.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// messageIDs lists every catalog key in a stable order so the UI
// endpoint can ship the whole catalog at once.
var messageIDs = []string{
	"app.title",
	"app.subtitle",
	"area.draw_prompt",
	"area.too_large",
	"area.invalid",
	"area.duplicate",
	"area.busy",
	"job.submitting",
	"job.queued",
	"job.running",
	"job.done",
	"job.failed",
	"job.summary",
	"table.title",
	"table.building",
	"table.layer",
	"table.eave",
	"table.above_ground",
	"histogram.title",
	"histogram.axis_height",
	"histogram.axis_count",
	"export.kml",
	"export.ply",
	"stats.buildings",
	"stats.min",
	"stats.max",
	"stats.mean",
	"stats.total_jobs",
	"stats.total_buildings",
}

// Translator resolves UI messages for a requested language.
type Translator struct {
	bundle      *goi18n.Bundle
	matcher     language.Matcher
	raw         map[language.Tag]map[string]string
	tags        []language.Tag
	defaultLang string
}

// New loads the embedded catalogs.
func New(defaultLang string) (*Translator, error) {
	tag, err := language.Parse(defaultLang)
	if err != nil {
		tag = language.German
	}

	bundle := goi18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	raw := make(map[language.Tag]map[string]string, 2)
	tags := []language.Tag{tag}
	for _, file := range []string{"locales/de.json", "locales/en.json"} {
		if _, err := bundle.LoadMessageFileFS(localeFS, file); err != nil {
			return nil, fmt.Errorf("load catalog %s: %w", file, err)
		}

		data, err := localeFS.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", file, err)
		}
		var msgs map[string]string
		if err := json.Unmarshal(data, &msgs); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", file, err)
		}
		fileTag := language.MustParse(strings.TrimSuffix(path.Base(file), ".json"))
		raw[fileTag] = msgs
		if fileTag != tag {
			tags = append(tags, fileTag)
		}
	}
	if _, ok := raw[tag]; !ok {
		// Unknown default, fall back to German as reference language.
		tag = language.German
		tags = append([]language.Tag{tag}, tags[1:]...)
	}

	return &Translator{
		bundle:      bundle,
		matcher:     language.NewMatcher(tags),
		raw:         raw,
		tags:        tags,
		defaultLang: tag.String(),
	}, nil
}

// Localizer returns a localizer honoring the given language
// preferences, typically the lang query parameter followed by the
// Accept-Language header.
func (t *Translator) Localizer(prefs ...string) *goi18n.Localizer {
	langs := make([]string, 0, len(prefs)+1)
	for _, p := range prefs {
		if p != "" {
			langs = append(langs, p)
		}
	}
	langs = append(langs, t.defaultLang)
	return goi18n.NewLocalizer(t.bundle, langs...)
}

// Message resolves one catalog entry with optional template data.
// Unknown ids come back as the id itself so a missing translation
// never breaks the page.
func (t *Translator) Message(loc *goi18n.Localizer, id string, data map[string]any) string {
	msg, err := loc.Localize(&goi18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
	})
	if err != nil {
		return id
	}
	return msg
}

// Catalog ships every message for the best matching language. Template
// placeholders stay unexpanded for the frontend to fill in.
func (t *Translator) Catalog(prefs ...string) map[string]string {
	_, idx := language.MatchStrings(t.matcher, prefs...)
	msgs := t.raw[t.tags[idx]]

	out := make(map[string]string, len(messageIDs))
	for _, id := range messageIDs {
		if msg, ok := msgs[id]; ok {
			out[id] = msg
		} else {
			out[id] = id
		}
	}
	return out
}
