// Package store holds the whole site state as one versioned JSON
// document behind a pluggable backend. Every table is independently
// readable and writable; every write persists the full document.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	applog "darkhaven/internal/log"
)

// Store is the single source of truth for all application tables.
// Construct with Open; the zero value is not usable.
type Store struct {
	mu      sync.RWMutex
	backend Backend
	doc     Document
	now     func() time.Time
}

// Option customizes a Store at construction time.
type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open loads the persisted document from the backend. An absent or
// unreadable document falls back to the seeded defaults; that failure
// is logged, never returned. The defaults are written back so the next
// load finds a well-formed envelope.
func Open(backend Backend, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, errors.New("store: backend is required")
	}

	s := &Store{
		backend: backend,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	raw, err := backend.Load()
	switch {
	case errors.Is(err, ErrNotFound):
		s.doc = DefaultDocument()
		if err := s.persistLocked(); err != nil {
			return nil, fmt.Errorf("initialize document: %w", err)
		}
	case err != nil:
		// Transient backend failure: proceed on defaults without
		// overwriting whatever the backend holds.
		applog.Error(context.Background(), "failed to load document, using defaults", "error", err)
		s.doc = DefaultDocument()
	default:
		doc, migrated, ok := decodeEnvelope(raw)
		s.doc = doc
		if !ok {
			applog.Warn(context.Background(), "stored document unreadable, reset to defaults")
		}
		if migrated || !ok {
			if err := s.persistLocked(); err != nil {
				return nil, fmt.Errorf("persist migrated document: %w", err)
			}
		}
	}

	return s, nil
}

// decodeEnvelope parses a persisted envelope. ok is false when the
// bytes are unusable and the defaults were substituted; migrated is
// true when a version mismatch triggered the field-copy migration.
func decodeEnvelope(raw []byte) (doc Document, migrated, ok bool) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return DefaultDocument(), false, false
	}
	if env.Version != SchemaVersion {
		return migrateDocument(env.Data), true, true
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return DefaultDocument(), false, true
	}
	if err := json.Unmarshal(env.Data, &doc); err != nil {
		return DefaultDocument(), false, false
	}
	doc.normalize()
	return doc, false, true
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// persistLocked serializes the current document and hands it to the
// backend. Callers must hold the write lock (or have exclusive access
// during Open).
func (s *Store) persistLocked() error {
	data, err := json.Marshal(s.doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	raw, err := json.MarshalIndent(envelope{
		Version:      SchemaVersion,
		Data:         data,
		LastModified: s.timestamp(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := s.backend.Save(raw); err != nil {
		return fmt.Errorf("persist document: %w", err)
	}
	return nil
}

// Flush writes the current document to the backend.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

// Close flushes the document one final time. The store must not be
// used afterwards.
func (s *Store) Close() error {
	return s.Flush()
}

// Document returns a deep copy of the full document.
func (s *Store) Document() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// Snapshot returns the serialized envelope exactly as the backend
// stores it. This is what the document-sync endpoint serves.
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := json.Marshal(s.doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return json.MarshalIndent(envelope{
		Version:      SchemaVersion,
		Data:         data,
		LastModified: s.timestamp(),
	}, "", "  ")
}

// ReplaceSnapshot swaps in a complete envelope received from outside
// (the PUT side of the sync endpoint). The envelope must parse and
// carry a data field; otherwise the current document is untouched.
func (s *Store) ReplaceSnapshot(raw []byte) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("parse envelope: %w", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return errors.New("envelope has no data field")
	}
	var doc Document
	if env.Version == SchemaVersion {
		if err := json.Unmarshal(env.Data, &doc); err != nil {
			return fmt.Errorf("parse document: %w", err)
		}
		doc.normalize()
	} else {
		doc = migrateDocument(env.Data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
	return s.persistLocked()
}

// Clear resets the document to the seeded defaults and persists it.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = DefaultDocument()
	return s.persistLocked()
}

// Restore reloads the document from the backend's backup copy, when
// the backend keeps one.
func (s *Store) Restore() error {
	bb, ok := s.backend.(backupBackend)
	if !ok {
		return errors.New("store: backend keeps no backup copy")
	}
	raw, err := bb.LoadBackup()
	if err != nil {
		return fmt.Errorf("load backup: %w", err)
	}
	doc, _, ok := decodeEnvelope(raw)
	if !ok {
		return errors.New("store: backup copy unreadable")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
	return s.persistLocked()
}

// mutate runs fn against the live document under the write lock and
// persists the result. Every table setter funnels through here: one
// call, one whole-document write.
func (s *Store) mutate(fn func(*Document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.doc)
	return s.persistLocked()
}

// ---- user ----

// User returns the signed-in identity, or nil for guest.
func (s *Store) User() *Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc.User == nil {
		return nil
	}
	u := *s.doc.User
	return &u
}

// SetUser overwrites the identity wholesale. Passing nil signs out.
func (s *Store) SetUser(user *Identity) error {
	return s.mutate(func(d *Document) {
		if user == nil {
			d.User = nil
			return
		}
		u := *user
		d.User = &u
	})
}

// ---- elements ----

// Elements returns a deep copy of the full section → element-list map.
func (s *Store) Elements() map[string][]Element {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneElements(s.doc.Elements)
}

// ElementsFor returns the element list of one section, empty when the
// section has none.
func (s *Store) ElementsFor(section string) []Element {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.doc.Elements[section]
	out := make([]Element, len(list))
	copy(out, list)
	return out
}

// SetElements replaces one section's element list.
func (s *Store) SetElements(section string, elements []Element) error {
	return s.mutate(func(d *Document) {
		list := make([]Element, len(elements))
		copy(list, elements)
		for i := range list {
			list[i].Styles = list[i].Styles.Normalize()
		}
		d.Elements[section] = list
	})
}

// SetAllElements replaces the entire element map in one write.
func (s *Store) SetAllElements(elements map[string][]Element) error {
	return s.mutate(func(d *Document) {
		copied := cloneElements(elements)
		for section, list := range copied {
			for i := range list {
				list[i].Styles = list[i].Styles.Normalize()
			}
			copied[section] = list
		}
		d.Elements = copied
	})
}

// ---- page heights ----

// PageHeights returns a copy of the section height map.
func (s *Store) PageHeights() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clonePageHeights(s.doc.PageHeights)
}

// PageHeight returns the stored height for a section in viewport-height
// units, defaulting to 100 when absent.
func (s *Store) PageHeight(section string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if h, ok := s.doc.PageHeights[section]; ok {
		return h
	}
	return 100
}

// SetPageHeight stores one section's height.
func (s *Store) SetPageHeight(section string, height int) error {
	return s.mutate(func(d *Document) {
		d.PageHeights[section] = height
	})
}

// SetAllPageHeights replaces the entire height map.
func (s *Store) SetAllPageHeights(heights map[string]int) error {
	return s.mutate(func(d *Document) {
		d.PageHeights = clonePageHeights(heights)
	})
}

// SetLayout replaces the element map and the page-height map together,
// persisting a single envelope. This is the editor's save path: the
// two maps can never land in separate writes.
func (s *Store) SetLayout(elements map[string][]Element, heights map[string]int) error {
	return s.mutate(func(d *Document) {
		copied := cloneElements(elements)
		for section, list := range copied {
			for i := range list {
				list[i].Styles = list[i].Styles.Normalize()
			}
			copied[section] = list
		}
		d.Elements = copied
		d.PageHeights = clonePageHeights(heights)
	})
}

// ---- hero ----

func (s *Store) Hero() HeroData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.HeroData
}

func (s *Store) SetHero(hero HeroData) error {
	return s.mutate(func(d *Document) {
		d.HeroData = hero
	})
}

// UpdateHero applies a partial change to the hero block in place.
func (s *Store) UpdateHero(mutate func(*HeroData)) (HeroData, error) {
	var updated HeroData
	err := s.mutate(func(d *Document) {
		mutate(&d.HeroData)
		updated = d.HeroData
	})
	return updated, err
}

// ---- tabs ----

func (s *Store) CustomTabs() []Tab {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTabs(s.doc.CustomTabs)
}

func (s *Store) SetCustomTabs(tabs []Tab) error {
	return s.mutate(func(d *Document) {
		d.CustomTabs = cloneTabs(tabs)
	})
}

func (s *Store) SidebarTabs() []Tab {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTabs(s.doc.SidebarTabs)
}

func (s *Store) SetSidebarTabs(tabs []Tab) error {
	return s.mutate(func(d *Document) {
		d.SidebarTabs = cloneTabs(tabs)
	})
}

// ---- news ----

func (s *Store) News() []NewsItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]NewsItem, len(s.doc.News))
	copy(out, s.doc.News)
	return out
}

func (s *Store) SetNews(items []NewsItem) error {
	return s.mutate(func(d *Document) {
		d.News = append([]NewsItem(nil), items...)
	})
}

// AddNews appends a news post with the next integer id.
func (s *Store) AddNews(title, content, author, date string) (NewsItem, error) {
	var item NewsItem
	err := s.mutate(func(d *Document) {
		now := s.timestamp()
		item = NewsItem{
			ID:        nextID(d.News, func(n NewsItem) int { return n.ID }),
			Title:     title,
			Content:   content,
			Author:    author,
			Date:      date,
			CreatedAt: now,
			UpdatedAt: now,
		}
		d.News = append(d.News, item)
	})
	return item, err
}

// UpdateNews applies mutate to the post with the given id. The second
// return is false when no such post exists.
func (s *Store) UpdateNews(id int, mutate func(*NewsItem)) (NewsItem, bool, error) {
	var (
		item  NewsItem
		found bool
	)
	err := s.mutate(func(d *Document) {
		for i := range d.News {
			if d.News[i].ID == id {
				mutate(&d.News[i])
				d.News[i].ID = id
				d.News[i].UpdatedAt = s.timestamp()
				item = d.News[i]
				found = true
				return
			}
		}
	})
	return item, found, err
}

func (s *Store) DeleteNews(id int) (bool, error) {
	var found bool
	err := s.mutate(func(d *Document) {
		for i := range d.News {
			if d.News[i].ID == id {
				d.News = append(d.News[:i], d.News[i+1:]...)
				found = true
				return
			}
		}
	})
	return found, err
}

// ---- rules ----

func (s *Store) Rules() []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Rule, len(s.doc.Rules))
	copy(out, s.doc.Rules)
	return out
}

func (s *Store) SetRules(rules []Rule) error {
	return s.mutate(func(d *Document) {
		d.Rules = append([]Rule(nil), rules...)
	})
}

func (s *Store) AddRule(number int, title, content string) (Rule, error) {
	var rule Rule
	err := s.mutate(func(d *Document) {
		now := s.timestamp()
		rule = Rule{
			ID:        nextID(d.Rules, func(r Rule) int { return r.ID }),
			Number:    number,
			Title:     title,
			Content:   content,
			CreatedAt: now,
			UpdatedAt: now,
		}
		d.Rules = append(d.Rules, rule)
	})
	return rule, err
}

func (s *Store) UpdateRule(id int, mutate func(*Rule)) (Rule, bool, error) {
	var (
		rule  Rule
		found bool
	)
	err := s.mutate(func(d *Document) {
		for i := range d.Rules {
			if d.Rules[i].ID == id {
				mutate(&d.Rules[i])
				d.Rules[i].ID = id
				d.Rules[i].UpdatedAt = s.timestamp()
				rule = d.Rules[i]
				found = true
				return
			}
		}
	})
	return rule, found, err
}

func (s *Store) DeleteRule(id int) (bool, error) {
	var found bool
	err := s.mutate(func(d *Document) {
		for i := range d.Rules {
			if d.Rules[i].ID == id {
				d.Rules = append(d.Rules[:i], d.Rules[i+1:]...)
				found = true
				return
			}
		}
	})
	return found, err
}

// ---- wiki ----

func (s *Store) WikiCategories() []WikiCategory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]WikiCategory, len(s.doc.WikiCategories))
	copy(out, s.doc.WikiCategories)
	return out
}

func (s *Store) SetWikiCategories(categories []WikiCategory) error {
	return s.mutate(func(d *Document) {
		d.WikiCategories = append([]WikiCategory(nil), categories...)
	})
}

func (s *Store) AddWikiCategory(title, icon string, orderIndex int) (WikiCategory, error) {
	var category WikiCategory
	err := s.mutate(func(d *Document) {
		category = WikiCategory{
			ID:         nextID(d.WikiCategories, func(c WikiCategory) int { return c.ID }),
			Title:      title,
			Icon:       icon,
			OrderIndex: orderIndex,
			CreatedAt:  s.timestamp(),
		}
		d.WikiCategories = append(d.WikiCategories, category)
	})
	return category, err
}

func (s *Store) WikiPages() []WikiPage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]WikiPage, len(s.doc.WikiPages))
	copy(out, s.doc.WikiPages)
	return out
}

func (s *Store) SetWikiPages(pages []WikiPage) error {
	return s.mutate(func(d *Document) {
		d.WikiPages = append([]WikiPage(nil), pages...)
	})
}

func (s *Store) AddWikiPage(title, content string, categoryID int) (WikiPage, error) {
	var page WikiPage
	err := s.mutate(func(d *Document) {
		now := s.timestamp()
		page = WikiPage{
			ID:         nextID(d.WikiPages, func(p WikiPage) int { return p.ID }),
			Title:      title,
			Content:    content,
			CategoryID: categoryID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		d.WikiPages = append(d.WikiPages, page)
	})
	return page, err
}

func (s *Store) UpdateWikiPage(id int, mutate func(*WikiPage)) (WikiPage, bool, error) {
	var (
		page  WikiPage
		found bool
	)
	err := s.mutate(func(d *Document) {
		for i := range d.WikiPages {
			if d.WikiPages[i].ID == id {
				mutate(&d.WikiPages[i])
				d.WikiPages[i].ID = id
				d.WikiPages[i].UpdatedAt = s.timestamp()
				page = d.WikiPages[i]
				found = true
				return
			}
		}
	})
	return page, found, err
}

func (s *Store) DeleteWikiPage(id int) (bool, error) {
	var found bool
	err := s.mutate(func(d *Document) {
		for i := range d.WikiPages {
			if d.WikiPages[i].ID == id {
				d.WikiPages = append(d.WikiPages[:i], d.WikiPages[i+1:]...)
				found = true
				return
			}
		}
	})
	return found, err
}

// ---- chat ----

func (s *Store) ChatRooms() []ChatRoom {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ChatRoom, len(s.doc.ChatRooms))
	copy(out, s.doc.ChatRooms)
	return out
}

func (s *Store) AddChatRoom(id, name, icon, description string) (ChatRoom, error) {
	var room ChatRoom
	err := s.mutate(func(d *Document) {
		room = ChatRoom{
			ID:          id,
			Name:        name,
			Icon:        icon,
			Description: description,
			CreatedAt:   s.timestamp(),
		}
		d.ChatRooms = append(d.ChatRooms, room)
	})
	return room, err
}

// ChatMessages returns the messages of one room in insertion order, or
// every message when roomID is empty.
func (s *Store) ChatMessages(roomID string) []ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ChatMessage, 0, len(s.doc.ChatMessages))
	for _, msg := range s.doc.ChatMessages {
		if roomID == "" || msg.RoomID == roomID {
			out = append(out, msg)
		}
	}
	return out
}

func (s *Store) AddChatMessage(roomID, username, content, avatar string) (ChatMessage, error) {
	var msg ChatMessage
	err := s.mutate(func(d *Document) {
		msg = ChatMessage{
			ID:        nextID(d.ChatMessages, func(m ChatMessage) int { return m.ID }),
			RoomID:    roomID,
			Username:  username,
			Content:   content,
			Avatar:    avatar,
			Timestamp: s.timestamp(),
		}
		d.ChatMessages = append(d.ChatMessages, msg)
	})
	return msg, err
}

func (s *Store) DeleteChatMessage(id int) (bool, error) {
	var found bool
	err := s.mutate(func(d *Document) {
		for i := range d.ChatMessages {
			if d.ChatMessages[i].ID == id {
				d.ChatMessages = append(d.ChatMessages[:i], d.ChatMessages[i+1:]...)
				found = true
				return
			}
		}
	})
	return found, err
}

// ---- roadmap ----

func (s *Store) RoadmapItems() []RoadmapItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RoadmapItem, len(s.doc.RoadmapItems))
	copy(out, s.doc.RoadmapItems)
	return out
}

func (s *Store) AddRoadmapItem(title string, progress int, status string) (RoadmapItem, error) {
	var item RoadmapItem
	err := s.mutate(func(d *Document) {
		now := s.timestamp()
		item = RoadmapItem{
			ID:        nextID(d.RoadmapItems, func(r RoadmapItem) int { return r.ID }),
			Title:     title,
			Progress:  progress,
			Status:    status,
			CreatedAt: now,
			UpdatedAt: now,
		}
		d.RoadmapItems = append(d.RoadmapItems, item)
	})
	return item, err
}

func (s *Store) UpdateRoadmapItem(id int, mutate func(*RoadmapItem)) (RoadmapItem, bool, error) {
	var (
		item  RoadmapItem
		found bool
	)
	err := s.mutate(func(d *Document) {
		for i := range d.RoadmapItems {
			if d.RoadmapItems[i].ID == id {
				mutate(&d.RoadmapItems[i])
				d.RoadmapItems[i].ID = id
				d.RoadmapItems[i].UpdatedAt = s.timestamp()
				item = d.RoadmapItems[i]
				found = true
				return
			}
		}
	})
	return item, found, err
}

// ---- music ----

func (s *Store) MusicTracks() []MusicTrack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]MusicTrack, len(s.doc.MusicTracks))
	copy(out, s.doc.MusicTracks)
	return out
}

func (s *Store) AddMusicTrack(title, url string, orderIndex int) (MusicTrack, error) {
	var track MusicTrack
	err := s.mutate(func(d *Document) {
		track = MusicTrack{
			ID:         uuid.NewString(),
			Title:      title,
			URL:        url,
			OrderIndex: orderIndex,
			CreatedAt:  s.timestamp(),
		}
		d.MusicTracks = append(d.MusicTracks, track)
	})
	return track, err
}

func (s *Store) DeleteMusicTrack(id string) (bool, error) {
	var found bool
	err := s.mutate(func(d *Document) {
		for i := range d.MusicTracks {
			if d.MusicTracks[i].ID == id {
				d.MusicTracks = append(d.MusicTracks[:i], d.MusicTracks[i+1:]...)
				found = true
				return
			}
		}
	})
	return found, err
}

// ---- site config ----

func (s *Store) SiteConfig() []SiteConfigItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SiteConfigItem, len(s.doc.SiteConfig))
	copy(out, s.doc.SiteConfig)
	return out
}

// SiteConfigValue looks up one setting by key.
func (s *Store) SiteConfigValue(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.doc.SiteConfig {
		if item.Key == key {
			return item.Value, true
		}
	}
	return nil, false
}

// SetSiteConfigValue inserts or updates one setting by key.
func (s *Store) SetSiteConfigValue(key string, value any) error {
	return s.mutate(func(d *Document) {
		now := s.timestamp()
		for i := range d.SiteConfig {
			if d.SiteConfig[i].Key == key {
				d.SiteConfig[i].Value = value
				d.SiteConfig[i].UpdatedAt = now
				return
			}
		}
		d.SiteConfig = append(d.SiteConfig, SiteConfigItem{
			ID:        nextID(d.SiteConfig, func(c SiteConfigItem) int { return c.ID }),
			Key:       key,
			Value:     value,
			UpdatedAt: now,
		})
	})
}

// ---- maps ----

func (s *Store) Maps() []MapEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]MapEntry, len(s.doc.Maps))
	copy(out, s.doc.Maps)
	return out
}

func (s *Store) SetMaps(maps []MapEntry) error {
	return s.mutate(func(d *Document) {
		d.Maps = append([]MapEntry(nil), maps...)
	})
}

func (s *Store) AddMap(name, url string) (MapEntry, error) {
	var entry MapEntry
	err := s.mutate(func(d *Document) {
		entry = MapEntry{
			ID:   uuid.NewString(),
			Name: name,
			URL:  url,
		}
		d.Maps = append(d.Maps, entry)
	})
	return entry, err
}

// nextID yields max+1 over a table's integer ids, starting at 1.
func nextID[T any](items []T, id func(T) int) int {
	next := 1
	for _, item := range items {
		if v := id(item); v >= next {
			next = v + 1
		}
	}
	return next
}

// tableNames lists the document's table keys in a stable order, used by
// the SQL export.
func tableNames(tables map[string]json.RawMessage) []string {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
