package viewer

import "sync"

// ThemeMode is the color scheme of the rendering surface.
type ThemeMode int

const (
	ModeLight ThemeMode = iota
	ModeDark
)

// Theme identifiers understood by the rendering surface.
const (
	ThemeLight = "nginx-theme"
	ThemeDark  = "nginx-theme-dark"
)

// String returns the string representation of ThemeMode
func (m ThemeMode) String() string {
	if m == ModeDark {
		return "dark"
	}
	return "light"
}

// Theme returns the theme identifier for m.
func (m ThemeMode) Theme() string {
	if m == ModeDark {
		return ThemeDark
	}
	return ThemeLight
}

// Toggle returns the opposite mode.
func (m ThemeMode) Toggle() ThemeMode {
	if m == ModeDark {
		return ModeLight
	}
	return ModeDark
}

// InitialMode maps the color-mode attribute present at mount time. An
// unset attribute means dark.
func InitialMode(attr string) ThemeMode {
	if attr == "" || attr == "dark" {
		return ModeDark
	}
	return ModeLight
}

// ChangedMode maps the scheme carried by a change notification. Only the
// literal "dark" selects dark; an empty scheme selects light.
func ChangedMode(scheme string) ThemeMode {
	if scheme == "dark" {
		return ModeDark
	}
	return ModeLight
}

// ColorSchemeChange is the payload of a theme change notification.
type ColorSchemeChange struct {
	ColorScheme string `json:"colorScheme"`
}

// ThemeContext carries the current mode to the view tree. The view reads
// it once when mounted and then follows changes through Subscribe.
type ThemeContext struct {
	mu        sync.Mutex
	mode      ThemeMode
	observers observers[ThemeMode]
}

// NewThemeContext resolves the initial mode from the ambient attribute.
func NewThemeContext(attr string) *ThemeContext {
	return &ThemeContext{mode: InitialMode(attr)}
}

// Mode returns the current mode.
func (t *ThemeContext) Mode() ThemeMode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

// Theme returns the current theme identifier.
func (t *ThemeContext) Theme() string {
	return t.Mode().Theme()
}

// Notify applies a change notification and tells subscribers. Subscribers
// are called even when the mode is unchanged.
func (t *ThemeContext) Notify(change ColorSchemeChange) {
	mode := ChangedMode(change.ColorScheme)

	t.mu.Lock()
	t.mode = mode
	t.mu.Unlock()

	t.observers.notify(mode)
}

// Subscribe registers fn for change notifications.
func (t *ThemeContext) Subscribe(fn func(ThemeMode)) Disposer {
	return t.observers.add(fn)
}
