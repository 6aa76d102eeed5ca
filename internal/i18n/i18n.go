// README: Translation manager over embedded YAML locales with {name} placeholders.
package i18n

import (
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var embeddedLocales embed.FS

const DefaultLanguage = "uz"

type Manager struct {
	defaultLang  string
	translations map[string]map[string]string
	logger       *slog.Logger
	mu           sync.RWMutex
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithDefaultLang(lang string) Option {
	return func(m *Manager) {
		if n := Normalize(lang); n != "" {
			m.defaultLang = n
		}
	}
}

func NewManager(opts ...Option) (*Manager, error) {
	m := &Manager{
		defaultLang:  DefaultLanguage,
		translations: make(map[string]map[string]string),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.loadEmbedded(); err != nil {
		return nil, err
	}
	if _, ok := m.translations[m.defaultLang]; !ok {
		return nil, fmt.Errorf("default language %q has no locale file", m.defaultLang)
	}
	return m, nil
}

func (m *Manager) loadEmbedded() error {
	entries, err := embeddedLocales.ReadDir("locales")
	if err != nil {
		return fmt.Errorf("read locales: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		data, err := embeddedLocales.ReadFile("locales/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read locale %s: %w", entry.Name(), err)
		}
		if err := m.merge(strings.TrimSuffix(entry.Name(), ".yaml"), data); err != nil {
			return err
		}
	}
	return nil
}

// LoadFromDir overlays *.yaml files from dir on top of the embedded locales.
// A missing directory is not an error.
func (m *Manager) LoadFromDir(dir string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read locales dir: %w", err)
	}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".yaml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, f.Name()))
		if err != nil {
			m.logger.Warn("skip locale file", "file", f.Name(), "error", err)
			continue
		}
		if err := m.merge(strings.TrimSuffix(f.Name(), ".yaml"), data); err != nil {
			m.logger.Warn("skip locale file", "file", f.Name(), "error", err)
		}
	}
	return nil
}

func (m *Manager) merge(lang string, data []byte) error {
	var content map[string]string
	if err := yaml.Unmarshal(data, &content); err != nil {
		return fmt.Errorf("parse locale %s: %w", lang, err)
	}
	lang = Normalize(lang)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.translations[lang]; !ok {
		m.translations[lang] = make(map[string]string, len(content))
	}
	for k, v := range content {
		m.translations[lang][k] = v
	}
	return nil
}

// T never fails: unknown languages fall back to the default language, unknown
// keys to the key itself. Lines left blank by an empty parameter are dropped.
func (m *Manager) T(key, lang string, params map[string]any) string {
	m.mu.RLock()
	tmpl, ok := m.lookup(key, Normalize(lang))
	m.mu.RUnlock()
	if !ok {
		return key
	}
	if len(params) == 0 {
		return tmpl
	}
	return render(tmpl, params)
}

func (m *Manager) lookup(key, lang string) (string, bool) {
	if trans, ok := m.translations[lang]; ok {
		if v, ok := trans[key]; ok {
			return v, true
		}
	}
	if v, ok := m.translations[m.defaultLang][key]; ok {
		return v, true
	}
	return "", false
}

// Supports reports whether a locale exists for lang.
func (m *Manager) Supports(lang string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.translations[Normalize(lang)]
	return ok
}

func (m *Manager) Languages() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.translations))
	for l := range m.translations {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) DefaultLanguage() string {
	return m.defaultLang
}

// Normalize reduces a language tag to its base: "ru-RU" -> "ru".
func Normalize(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return ""
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return strings.ToLower(lang)
	}
	base, _ := tag.Base()
	return base.String()
}

func render(tmpl string, params map[string]any) string {
	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "{"+k+"}", fmt.Sprint(v))
	}
	r := strings.NewReplacer(pairs...)

	lines := strings.Split(tmpl, "\n")
	out := lines[:0]
	for _, line := range lines {
		rendered := r.Replace(line)
		if strings.TrimSpace(rendered) == "" && strings.Contains(line, "{") {
			continue
		}
		out = append(out, rendered)
	}
	return strings.Join(out, "\n")
}
