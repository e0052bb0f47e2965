package app

import "strings"

// Kind tells application entries apart from settings shortcuts
type Kind int

const (
	KindApplication Kind = iota
	KindSettings
)

// String returns the tag used when the kind is persisted
func (k Kind) String() string {
	if k == KindSettings {
		return "Settings"
	}
	return "Application"
}

// ParseKind maps a persisted tag back to a Kind. Unknown tags are applications.
func ParseKind(s string) Kind {
	if s == "Settings" {
		return KindSettings
	}
	return KindApplication
}

// Entry represents a single launchable item
type Entry struct {
	Name      string // Display name, not unique
	ID        string // Canonical identifier: path, URI or settings id
	Arguments string // Extra invocation arguments, empty for none
	Icon      int32  // Opaque icon handle, <= 0 means no icon
	Usage     uint64 // Launch count
	Kind      Kind
}

// New creates an application entry without arguments
func New(name, id string, icon int32, usage uint64) Entry {
	return Entry{
		Name:  name,
		ID:    id,
		Icon:  icon,
		Usage: usage,
		Kind:  KindApplication,
	}
}

// NewWithArgs creates an application entry carrying invocation arguments
func NewWithArgs(name, id, args string, icon int32, usage uint64) Entry {
	e := New(name, id, icon, usage)
	e.Arguments = args
	return e
}

// NewSettings creates a settings shortcut. Settings never carry usage.
func NewSettings(name, id string, icon int32) Entry {
	return Entry{
		Name: name,
		ID:   id,
		Icon: icon,
		Kind: KindSettings,
	}
}

// IsSettings reports whether the entry is a settings shortcut
func (e Entry) IsSettings() bool {
	return e.Kind == KindSettings
}

// LocalizedName picks the name for locale from names, trying the exact locale,
// then its language part ("en" from "en_US" or "en-US"), then fallback.
func LocalizedName(names map[string]string, fallback, locale string) string {
	if locale == "" || len(names) == 0 {
		return fallback
	}

	// Drop encoding and modifier ("de_DE.UTF-8@euro")
	if i := strings.IndexAny(locale, ".@"); i > 0 {
		locale = locale[:i]
	}

	if name, ok := names[locale]; ok {
		return name
	}

	if i := strings.IndexAny(locale, "_-"); i > 0 {
		if name, ok := names[locale[:i]]; ok {
			return name
		}
	}

	return fallback
}
