// Package settings provides the catalog of settings-panel shortcuts that are
// indexed next to applications.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/0xADE/ade-launchd/internal/app"
	"gopkg.in/yaml.v3"
)

// IDPrefix marks canonical ids of settings shortcuts
const IDPrefix = "settings:"

// Item is one settings panel
type Item struct {
	ID    string            `yaml:"id"`
	Name  string            `yaml:"name"`
	Names map[string]string `yaml:"names,omitempty"`
	Exec  string            `yaml:"exec"`
	Icon  string            `yaml:"icon,omitempty"`
}

// LocalizedName returns the item name for locale
func (i Item) LocalizedName(locale string) string {
	return app.LocalizedName(i.Names, i.Name, locale)
}

// Catalog is an ordered, id-addressable set of settings items
type Catalog struct {
	items []Item
	byID  map[string]int
}

type file struct {
	Replace bool   `yaml:"replace"`
	Items   []Item `yaml:"settings"`
}

func panel(id, name, icon string) Item {
	return Item{
		ID:   IDPrefix + id,
		Name: name,
		Exec: "gnome-control-center " + id,
		Icon: icon,
	}
}

// Builtin returns the default catalog
func Builtin() *Catalog {
	return NewCatalog([]Item{
		panel("display", "Display settings", "preferences-desktop-display"),
		panel("sound", "Sound settings", "preferences-desktop-sound"),
		panel("network", "Network settings", "preferences-system-network"),
		panel("wifi", "Wi-Fi settings", "network-wireless"),
		panel("bluetooth", "Bluetooth settings", "bluetooth"),
		panel("printers", "Printers & scanners", "printer"),
		panel("power", "Power & sleep", "preferences-system-power"),
		panel("applications", "Apps & features", "preferences-desktop-apps"),
		panel("background", "Personalization", "preferences-desktop-wallpaper"),
		panel("datetime", "Date & time", "preferences-system-time"),
		panel("region", "Language settings", "preferences-desktop-locale"),
		panel("privacy", "Privacy settings", "preferences-system-privacy"),
		panel("users", "Your info", "system-users"),
		panel("keyboard", "Keyboard settings", "input-keyboard"),
		panel("mouse", "Mouse & touchpad", "input-mouse"),
		panel("storage", "Storage settings", "drive-harddisk"),
	})
}

// NewCatalog builds a catalog. Items without id or exec are dropped, the
// last item wins for a repeated id while keeping the first position.
func NewCatalog(items []Item) *Catalog {
	c := &Catalog{byID: make(map[string]int)}
	for _, item := range items {
		c.put(item)
	}
	return c
}

func (c *Catalog) put(item Item) {
	if item.ID == "" || item.Exec == "" {
		return
	}
	if !strings.HasPrefix(item.ID, IDPrefix) {
		item.ID = IDPrefix + item.ID
	}
	if item.Name == "" {
		item.Name = strings.TrimPrefix(item.ID, IDPrefix)
	}
	if i, ok := c.byID[item.ID]; ok {
		c.items[i] = item
		return
	}
	c.byID[item.ID] = len(c.items)
	c.items = append(c.items, item)
}

// Load reads the catalog file at path and merges it over the builtin
// catalog, or replaces it when the file says so. A missing file yields
// the builtin catalog.
func Load(path string) (*Catalog, error) {
	c := Builtin()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c, nil
		}
		return c, fmt.Errorf("failed to read settings catalog: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return c, fmt.Errorf("failed to parse settings catalog %s: %w", path, err)
	}

	if f.Replace {
		return NewCatalog(f.Items), nil
	}
	for _, item := range f.Items {
		c.put(item)
	}
	return c, nil
}

// Items returns the catalog in order
func (c *Catalog) Items() []Item {
	return append([]Item(nil), c.items...)
}

// Lookup finds an item by canonical id
func (c *Catalog) Lookup(id string) (Item, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

// Len returns the number of items
func (c *Catalog) Len() int {
	return len(c.items)
}

// IsSettingsID reports whether id names a settings shortcut
func IsSettingsID(id string) bool {
	return strings.HasPrefix(id, IDPrefix)
}
