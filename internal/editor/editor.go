// Package editor implements the visual page editor's element model:
// adding, repositioning, restyling and deleting the overlay elements of
// a section, with an explicit save back to the persisted store.
package editor

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"darkhaven/internal/store"
)

// DefaultSection is the section the editor starts on.
const DefaultSection = "home"

// Viewport is the pixel size of the page the editor lays elements on.
// New elements spawn centered in it.
type Viewport struct {
	Width  float64
	Height float64
}

// ErrNotEditing is returned by operations that require edit mode.
var ErrNotEditing = errors.New("editor: edit mode is off")

// ErrNotAdmin is returned when a non-admin identity tries to enter
// edit mode.
var ErrNotAdmin = errors.New("editor: edit mode requires an admin identity")

type dragState struct {
	id      string
	offsetX float64
	offsetY float64
}

// Editor holds the working copy of the element map and page heights.
// Mutations touch only the working copy; nothing reaches the store
// until Save. The editor is not safe for concurrent use; it models a
// single UI event loop.
type Editor struct {
	store    *store.Store
	viewport Viewport

	identity *store.Identity
	editing  bool

	activeSection string
	elements      map[string][]store.Element
	pageHeights   map[string]int

	selected string
	drag     *dragState
}

// Option customizes an Editor at construction time.
type Option func(*Editor)

// WithViewport sets the page size used to center new elements.
func WithViewport(v Viewport) Option {
	return func(e *Editor) {
		e.viewport = v
	}
}

// New builds an editor over st and loads its working copy.
func New(st *store.Store, opts ...Option) *Editor {
	e := &Editor{
		store:         st,
		viewport:      Viewport{Width: 1920, Height: 1080},
		activeSection: DefaultSection,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.Reload()
	return e
}

// Reload refreshes the working copy from the store, discarding any
// unsaved edits. This is what a page reload does to an unsaved drag.
func (e *Editor) Reload() {
	e.elements = e.store.Elements()
	e.pageHeights = e.store.PageHeights()
	e.selected = ""
	e.drag = nil
}

// SetIdentity records who is driving the editor. Clearing the identity
// (or handing it to a non-admin) forces edit mode off.
func (e *Editor) SetIdentity(identity *store.Identity) {
	e.identity = identity
	if identity == nil || !identity.IsAdmin {
		e.SetEditing(false)
	}
}

// SetEditing toggles edit mode. Turning it on requires an admin
// identity; turning it off clears the selection and any drag.
func (e *Editor) SetEditing(on bool) error {
	if on {
		if e.identity == nil || !e.identity.IsAdmin {
			return ErrNotAdmin
		}
		e.editing = true
		e.selected = ""
		return nil
	}
	e.editing = false
	e.selected = ""
	e.drag = nil
	return nil
}

// Editing reports whether edit mode is on.
func (e *Editor) Editing() bool {
	return e.editing
}

// Activate switches the section the editor mutates.
func (e *Editor) Activate(section string) {
	if section == e.activeSection {
		return
	}
	e.activeSection = section
	e.selected = ""
	e.drag = nil
}

// ActiveSection returns the section currently being edited.
func (e *Editor) ActiveSection() string {
	return e.activeSection
}

// Elements returns the working element list of the active section.
func (e *Editor) Elements() []store.Element {
	list := e.elements[e.activeSection]
	out := make([]store.Element, len(list))
	copy(out, list)
	return out
}

// AllElements returns the full working element map.
func (e *Editor) AllElements() map[string][]store.Element {
	out := make(map[string][]store.Element, len(e.elements))
	for section, list := range e.elements {
		copied := make([]store.Element, len(list))
		copy(copied, list)
		out[section] = copied
	}
	return out
}

// SelectedElement returns the selected element of the active section.
func (e *Editor) SelectedElement() (store.Element, bool) {
	if e.selected == "" {
		return store.Element{}, false
	}
	for _, el := range e.elements[e.activeSection] {
		if el.ID == e.selected {
			return el, true
		}
	}
	return store.Element{}, false
}

// Select marks an element of the active section as selected.
func (e *Editor) Select(id string) bool {
	if !e.editing {
		return false
	}
	for _, el := range e.elements[e.activeSection] {
		if el.ID == id {
			e.selected = id
			return true
		}
	}
	return false
}

// ClearSelection drops the selection, e.g. on a click into empty space.
func (e *Editor) ClearSelection() {
	e.selected = ""
}

// AddElement appends a new element of the given type to the active
// section, centered in the viewport with type-dependent defaults, and
// selects it. Returns ErrNotEditing when edit mode is off.
func (e *Editor) AddElement(t store.ElementType) (store.Element, error) {
	if !e.editing {
		return store.Element{}, ErrNotEditing
	}
	if !store.ValidElementType(t) {
		return store.Element{}, fmt.Errorf("editor: unknown element type %q", t)
	}

	el := store.Element{
		ID:   fmt.Sprintf("%s-%s", t, uuid.NewString()),
		Type: t,
		Position: store.Position{
			X: e.viewport.Width/2 - 100,
			Y: e.viewport.Height/2 - 50,
		},
		Size:   defaultSize(t),
		Styles: defaultStyles(t),
	}
	switch t {
	case store.ElementText:
		el.Content = "New text"
	case store.ElementButton:
		el.Content = "Button"
	}

	e.elements[e.activeSection] = append(e.elements[e.activeSection], el)
	e.selected = el.ID
	return el, nil
}

func defaultSize(t store.ElementType) store.Size {
	switch t {
	case store.ElementText:
		return store.Size{Width: 300, Height: 100}
	case store.ElementButton:
		return store.Size{Width: 200, Height: 50}
	default:
		return store.Size{Width: 400, Height: 300}
	}
}

func defaultStyles(t store.ElementType) store.Styles {
	background := "rgba(26, 26, 46, 0.8)"
	if t == store.ElementButton {
		background = "#00d9ff"
	}
	return store.Styles{
		BackgroundColor: background,
		TextColor:       "#ffffff",
		FontSize:        16,
		FontWeight:      "normal",
		BorderRadius:    8,
		Padding:         16,
		GlowColor:       "#00d9ff",
		GlowIntensity:   0,
		Animation:       store.AnimationNone,
	}
}

// UpdateElement replaces the element with the matching id inside the
// active section. Both the drag path and the style panel funnel
// through here. Style enums are normalized on the way in.
func (e *Editor) UpdateElement(el store.Element) error {
	if !e.editing {
		return ErrNotEditing
	}
	el.Styles = el.Styles.Normalize()
	list := e.elements[e.activeSection]
	for i := range list {
		if list[i].ID == el.ID {
			list[i] = el
			e.selected = el.ID
			return nil
		}
	}
	return fmt.Errorf("editor: no element %q in section %q", el.ID, e.activeSection)
}

// DeleteElement removes the selected element from the active section
// and clears the selection.
func (e *Editor) DeleteElement() error {
	if !e.editing {
		return ErrNotEditing
	}
	if e.selected == "" {
		return errors.New("editor: no element selected")
	}
	list := e.elements[e.activeSection]
	for i := range list {
		if list[i].ID == e.selected {
			e.elements[e.activeSection] = append(list[:i], list[i+1:]...)
			e.selected = ""
			return nil
		}
	}
	e.selected = ""
	return errors.New("editor: selected element no longer exists")
}

// BeginDrag starts dragging an element: the offset between the pointer
// and the element's origin is recorded so the element tracks the
// pointer without jumping.
func (e *Editor) BeginDrag(id string, pointer store.Position) error {
	if !e.editing {
		return ErrNotEditing
	}
	for _, el := range e.elements[e.activeSection] {
		if el.ID == id {
			e.drag = &dragState{
				id:      id,
				offsetX: pointer.X - el.Position.X,
				offsetY: pointer.Y - el.Position.Y,
			}
			e.selected = id
			return nil
		}
	}
	return fmt.Errorf("editor: no element %q to drag", id)
}

// DragTo moves the dragged element so it keeps tracking the pointer.
// Positions are unclamped; elements may leave the viewport.
func (e *Editor) DragTo(pointer store.Position) error {
	if e.drag == nil {
		return errors.New("editor: no drag in progress")
	}
	el, ok := e.findElement(e.drag.id)
	if !ok {
		e.drag = nil
		return errors.New("editor: dragged element no longer exists")
	}
	el.Position = store.Position{
		X: pointer.X - e.drag.offsetX,
		Y: pointer.Y - e.drag.offsetY,
	}
	return e.UpdateElement(el)
}

// EndDrag finishes the drag. The new position stays in the working
// copy only; it is lost unless Save is called.
func (e *Editor) EndDrag() {
	e.drag = nil
}

// Dragging reports whether a drag is in progress.
func (e *Editor) Dragging() bool {
	return e.drag != nil
}

func (e *Editor) findElement(id string) (store.Element, bool) {
	for _, el := range e.elements[e.activeSection] {
		if el.ID == id {
			return el, true
		}
	}
	return store.Element{}, false
}

// PageHeight returns the working height of the active section in
// viewport-height units, defaulting to 100.
func (e *Editor) PageHeight() int {
	if h, ok := e.pageHeights[e.activeSection]; ok {
		return h
	}
	return 100
}

// SetPageHeight records the active section's height in the working
// copy.
func (e *Editor) SetPageHeight(height int) error {
	if !e.editing {
		return ErrNotEditing
	}
	e.pageHeights[e.activeSection] = height
	return nil
}

// Save commits the entire working state: the full element map of every
// section plus the full page-height map, in a single store write. Like
// every other mutation it requires edit mode.
func (e *Editor) Save() error {
	if !e.editing {
		return ErrNotEditing
	}
	if err := e.store.SetLayout(e.elements, e.pageHeights); err != nil {
		return fmt.Errorf("save layout: %w", err)
	}
	return nil
}
