package store

import (
	"encoding/json"
	"time"
)

// SchemaVersion tags the persisted document shape. A stored document
// carrying any other version is migrated field-by-field on load.
const SchemaVersion = 1

// Identity is the signed-in browser identity. Nil means guest.
type Identity struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
}

// HeroData is the landing hero block content.
type HeroData struct {
	Title           string `json:"title"`
	Subtitle        string `json:"subtitle"`
	BackgroundImage string `json:"backgroundImage,omitempty"`
	LogoURL         string `json:"logoUrl,omitempty"`
}

// NewsItem is one news post.
type NewsItem struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Author    string `json:"author"`
	Date      string `json:"date"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Rule is one numbered community rule.
type Rule struct {
	ID        int    `json:"id"`
	Number    int    `json:"number"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// WikiCategory groups wiki pages in the sidebar.
type WikiCategory struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	Icon       string `json:"icon,omitempty"`
	OrderIndex int    `json:"order_index"`
	CreatedAt  string `json:"created_at"`
}

// WikiPage is one wiki article, optionally attached to a category.
type WikiPage struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	CategoryID int    `json:"category_id,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// ChatRoom is one chat channel.
type ChatRoom struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon,omitempty"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// ChatMessage is one message inside a chat room.
type ChatMessage struct {
	ID        int    `json:"id"`
	RoomID    string `json:"chat_room_id"`
	Username  string `json:"username"`
	Content   string `json:"content"`
	Avatar    string `json:"avatar,omitempty"`
	Timestamp string `json:"timestamp"`
}

// RoadmapItem tracks one development milestone.
type RoadmapItem struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Progress  int    `json:"progress"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// MusicTrack is one audio-player playlist entry.
type MusicTrack struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	OrderIndex int    `json:"order_index"`
	CreatedAt  string `json:"created_at"`
}

// SiteConfigItem is one free-form key/value site setting.
type SiteConfigItem struct {
	ID        int    `json:"id"`
	Key       string `json:"config_key"`
	Value     any    `json:"config_value"`
	UpdatedAt string `json:"updated_at"`
}

// MapEntry is one map available in the iframe map viewer.
type MapEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	IsActive bool   `json:"isActive"`
}

// Document is the single root object the store persists. Every field is
// an independent table; the store enforces no cross-field invariants.
type Document struct {
	User           *Identity            `json:"user"`
	Elements       map[string][]Element `json:"elements"`
	CustomTabs     []Tab                `json:"customTabs"`
	SidebarTabs    []Tab                `json:"sidebarTabs"`
	PageHeights    map[string]int       `json:"pageHeights"`
	HeroData       HeroData             `json:"heroData"`
	News           []NewsItem           `json:"news"`
	Rules          []Rule               `json:"rules"`
	WikiCategories []WikiCategory       `json:"wikiCategories"`
	WikiPages      []WikiPage           `json:"wikiPages"`
	ChatRooms      []ChatRoom           `json:"chatRooms"`
	ChatMessages   []ChatMessage        `json:"chatMessages"`
	RoadmapItems   []RoadmapItem        `json:"roadmapItems"`
	MusicTracks    []MusicTrack         `json:"musicTracks"`
	SiteConfig     []SiteConfigItem     `json:"siteConfig"`
	Maps           []MapEntry           `json:"maps"`
}

// envelope is the wire shape the backend stores and the sync endpoint
// serves: {version, data, lastModified}.
type envelope struct {
	Version      int             `json:"version"`
	Data         json.RawMessage `json:"data"`
	LastModified string          `json:"lastModified"`
}

// DefaultDocument returns a freshly seeded document: guest identity,
// empty editor state, the stock wiki categories, and the general chat
// room.
func DefaultDocument() Document {
	now := time.Now().UTC().Format(time.RFC3339)
	return Document{
		User:        nil,
		Elements:    map[string][]Element{},
		CustomTabs:  []Tab{},
		SidebarTabs: []Tab{},
		PageHeights: map[string]int{},
		HeroData: HeroData{
			Title:    "DARK HAVEN",
			Subtitle: "Explore the cosmos",
		},
		News:  []NewsItem{},
		Rules: []Rule{},
		WikiCategories: []WikiCategory{
			{ID: 1, Title: "Getting Started", Icon: "🎮", OrderIndex: 1, CreatedAt: now},
			{ID: 2, Title: "Mechanics", Icon: "⚙️", OrderIndex: 2, CreatedAt: now},
			{ID: 3, Title: "Commands", Icon: "📝", OrderIndex: 3, CreatedAt: now},
			{ID: 4, Title: "FAQ", Icon: "❓", OrderIndex: 4, CreatedAt: now},
		},
		WikiPages: []WikiPage{},
		ChatRooms: []ChatRoom{
			{ID: "general", Name: "General", Icon: "💬", Description: "Shared room for every member", CreatedAt: now},
		},
		ChatMessages: []ChatMessage{},
		RoadmapItems: []RoadmapItem{},
		MusicTracks:  []MusicTrack{},
		SiteConfig:   []SiteConfigItem{},
		Maps:         []MapEntry{},
	}
}

// normalize repairs reference-typed tables after a decode so callers
// never see nil maps or lists, and clamps element style enums.
func (d *Document) normalize() {
	if d.Elements == nil {
		d.Elements = map[string][]Element{}
	}
	for section, list := range d.Elements {
		for i := range list {
			list[i].Styles = list[i].Styles.Normalize()
		}
		d.Elements[section] = list
	}
	if d.PageHeights == nil {
		d.PageHeights = map[string]int{}
	}
	if d.CustomTabs == nil {
		d.CustomTabs = []Tab{}
	}
	if d.SidebarTabs == nil {
		d.SidebarTabs = []Tab{}
	}
	if d.News == nil {
		d.News = []NewsItem{}
	}
	if d.Rules == nil {
		d.Rules = []Rule{}
	}
	if d.WikiCategories == nil {
		d.WikiCategories = []WikiCategory{}
	}
	if d.WikiPages == nil {
		d.WikiPages = []WikiPage{}
	}
	if d.ChatRooms == nil {
		d.ChatRooms = []ChatRoom{}
	}
	if d.ChatMessages == nil {
		d.ChatMessages = []ChatMessage{}
	}
	if d.RoadmapItems == nil {
		d.RoadmapItems = []RoadmapItem{}
	}
	if d.MusicTracks == nil {
		d.MusicTracks = []MusicTrack{}
	}
	if d.SiteConfig == nil {
		d.SiteConfig = []SiteConfigItem{}
	}
	if d.Maps == nil {
		d.Maps = []MapEntry{}
	}
}

// Clone returns a deep copy of the document through the JSON codec.
// The document round-trips losslessly by contract, so the codec is a
// safe copier.
func (d Document) Clone() Document {
	raw, err := json.Marshal(d)
	if err != nil {
		// Document contains only JSON-representable values.
		panic("store: document not marshalable: " + err.Error())
	}
	var out Document
	if err := json.Unmarshal(raw, &out); err != nil {
		panic("store: document not unmarshalable: " + err.Error())
	}
	out.normalize()
	return out
}

func cloneElements(elements map[string][]Element) map[string][]Element {
	out := make(map[string][]Element, len(elements))
	for section, list := range elements {
		copied := make([]Element, len(list))
		copy(copied, list)
		out[section] = copied
	}
	return out
}

func clonePageHeights(heights map[string]int) map[string]int {
	out := make(map[string]int, len(heights))
	for section, h := range heights {
		out[section] = h
	}
	return out
}

func cloneTabs(tabs []Tab) []Tab {
	out := make([]Tab, len(tabs))
	for i, tab := range tabs {
		copied := make([]Element, len(tab.Elements))
		copy(copied, tab.Elements)
		tab.Elements = copied
		out[i] = tab
	}
	return out
}
