// Package nav models site navigation: the active section and the
// user-created custom tabs shown in the header and sidebar.
package nav

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"darkhaven/internal/store"
)

// DefaultSection is where navigation lands initially and after the
// active custom tab is deleted.
const DefaultSection = "home"

// BuiltinSections lists the fixed navigable areas of the site.
var BuiltinSections = []string{
	"home", "news", "rules", "wiki", "chat", "profile", "development", "map",
}

// Location says which list a custom tab belongs to.
type Location string

const (
	LocationHeader  Location = "header"
	LocationSidebar Location = "sidebar"
)

// Router tracks the active section and manages the custom tab lists,
// persisting tab changes through the store.
type Router struct {
	store   *store.Store
	active  string
	header  []store.Tab
	sidebar []store.Tab
}

// NewRouter loads the tab lists from the store and starts on the
// default section.
func NewRouter(st *store.Store) *Router {
	return &Router{
		store:   st,
		active:  DefaultSection,
		header:  st.CustomTabs(),
		sidebar: st.SidebarTabs(),
	}
}

// Active returns the current section identifier.
func (r *Router) Active() string {
	return r.active
}

// Activate switches the active section. Unknown identifiers are
// accepted as-is; the front end renders an empty panel for them.
func (r *Router) Activate(section string) {
	r.active = section
}

// HeaderTabs returns the custom tabs shown in the header.
func (r *Router) HeaderTabs() []store.Tab {
	out := make([]store.Tab, len(r.header))
	copy(out, r.header)
	return out
}

// SidebarTabs returns the custom tabs shown in the sidebar.
func (r *Router) SidebarTabs() []store.Tab {
	out := make([]store.Tab, len(r.sidebar))
	copy(out, r.sidebar)
	return out
}

// CreateTab adds a custom tab to the header or sidebar and persists
// the updated list.
func (r *Router) CreateTab(name, icon string, location Location) (store.Tab, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Tab{}, errors.New("nav: tab name is required")
	}

	tab := store.Tab{
		ID:       "custom-" + uuid.NewString(),
		Name:     name,
		Icon:     icon,
		Elements: []store.Element{},
		IsCustom: true,
	}

	switch location {
	case LocationHeader:
		r.header = append(r.header, tab)
		if err := r.store.SetCustomTabs(r.header); err != nil {
			r.header = r.header[:len(r.header)-1]
			return store.Tab{}, err
		}
	case LocationSidebar:
		r.sidebar = append(r.sidebar, tab)
		if err := r.store.SetSidebarTabs(r.sidebar); err != nil {
			r.sidebar = r.sidebar[:len(r.sidebar)-1]
			return store.Tab{}, err
		}
	default:
		return store.Tab{}, fmt.Errorf("nav: unknown tab location %q", location)
	}

	return tab, nil
}

// DeleteTab removes the tab from whichever list holds it and persists
// both lists. When the deleted tab was active, navigation falls back
// to the default section. The tab's elements entry in the store is
// deliberately left in place.
func (r *Router) DeleteTab(id string) (bool, error) {
	found := false
	if filtered, ok := removeTab(r.header, id); ok {
		r.header = filtered
		found = true
	}
	if filtered, ok := removeTab(r.sidebar, id); ok {
		r.sidebar = filtered
		found = true
	}
	if !found {
		return false, nil
	}

	if err := r.store.SetCustomTabs(r.header); err != nil {
		return false, err
	}
	if err := r.store.SetSidebarTabs(r.sidebar); err != nil {
		return false, err
	}

	if r.active == id {
		r.active = DefaultSection
	}
	return true, nil
}

func removeTab(tabs []store.Tab, id string) ([]store.Tab, bool) {
	for i := range tabs {
		if tabs[i].ID == id {
			return append(tabs[:i:i], tabs[i+1:]...), true
		}
	}
	return tabs, false
}
