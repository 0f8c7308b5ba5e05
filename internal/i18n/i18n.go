// Package i18n provides the small set of user-facing CLI strings in the
// locales the "set-language" command can select (spec.md §4.1, "Singletons").
package i18n

import "sync"

// Key identifies one translatable message.
type Key string

const (
	KeyLoginSuccess   Key = "login.success"
	KeyLoginFailed    Key = "login.failed"
	KeyProjectAdded   Key = "project.added"
	KeyProjectRemoved Key = "project.removed"
	KeyAgentStarting  Key = "agent.starting"
	KeyAgentStopped   Key = "agent.stopped"
	KeyConfigError    Key = "config.error"
	KeyUnknownLocale  Key = "locale.unknown"
)

// DefaultLocale is used when no locale has been configured.
const DefaultLocale = "en"

var table = map[string]map[Key]string{
	"en": {
		KeyLoginSuccess:   "Login successful.",
		KeyLoginFailed:    "Login failed: %s",
		KeyProjectAdded:   "Project %q added.",
		KeyProjectRemoved: "Project %q removed.",
		KeyAgentStarting:  "Starting agent for project %q...",
		KeyAgentStopped:   "Agent stopped.",
		KeyConfigError:    "Configuration error: %s",
		KeyUnknownLocale:  "Unknown locale %q, falling back to %q.",
	},
	"ja": {
		KeyLoginSuccess:   "ログインに成功しました。",
		KeyLoginFailed:    "ログインに失敗しました: %s",
		KeyProjectAdded:   "プロジェクト %q を追加しました。",
		KeyProjectRemoved: "プロジェクト %q を削除しました。",
		KeyAgentStarting:  "プロジェクト %q のエージェントを起動しています...",
		KeyAgentStopped:   "エージェントを停止しました。",
		KeyConfigError:    "設定エラー: %s",
		KeyUnknownLocale:  "不明なロケール %q です。%q を使用します。",
	},
}

// Translator holds the process-wide selected locale; it is safe for
// concurrent use and is constructed once at supervisor start-up (spec.md
// §4.1, "Singletons").
type Translator struct {
	mu     sync.RWMutex
	locale string
}

// New creates a Translator for the given locale, falling back to
// DefaultLocale if the locale is unsupported.
func New(locale string) *Translator {
	t := &Translator{locale: DefaultLocale}
	t.SetLocale(locale)
	return t
}

// SetLocale changes the active locale. Unsupported locales fall back to
// DefaultLocale.
func (t *Translator) SetLocale(locale string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := table[locale]; ok {
		t.locale = locale
		return
	}
	t.locale = DefaultLocale
}

// Locale returns the active locale code.
func (t *Translator) Locale() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.locale
}

// T returns the message for key in the active locale, falling back to
// English, and finally to the key itself if no translation exists at all.
func (t *Translator) T(key Key) string {
	t.mu.RLock()
	locale := t.locale
	t.mu.RUnlock()

	if msg, ok := table[locale][key]; ok {
		return msg
	}
	if msg, ok := table[DefaultLocale][key]; ok {
		return msg
	}
	return string(key)
}

// Supported reports whether locale has a translation table.
func Supported(locale string) bool {
	_, ok := table[locale]
	return ok
}
