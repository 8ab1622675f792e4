package store

import "encoding/json"

// migrateDocument carries recognized fields from an old-shaped data
// payload into a freshly defaulted document. The copy is additive:
// fields that are missing or fail to decode keep their defaults, and
// nothing is ever dropped from the default schema. No value
// transformation happens beyond the presence check.
func migrateDocument(raw json.RawMessage) Document {
	doc := DefaultDocument()

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return doc
	}

	copyField(fields, "user", &doc.User)
	copyField(fields, "elements", &doc.Elements)
	copyField(fields, "customTabs", &doc.CustomTabs)
	copyField(fields, "sidebarTabs", &doc.SidebarTabs)
	copyField(fields, "pageHeights", &doc.PageHeights)
	copyField(fields, "heroData", &doc.HeroData)
	copyField(fields, "news", &doc.News)
	copyField(fields, "rules", &doc.Rules)
	copyField(fields, "wikiCategories", &doc.WikiCategories)
	copyField(fields, "wikiPages", &doc.WikiPages)
	copyField(fields, "chatRooms", &doc.ChatRooms)
	copyField(fields, "chatMessages", &doc.ChatMessages)
	copyField(fields, "roadmapItems", &doc.RoadmapItems)
	copyField(fields, "musicTracks", &doc.MusicTracks)
	copyField(fields, "siteConfig", &doc.SiteConfig)
	copyField(fields, "maps", &doc.Maps)

	doc.normalize()
	return doc
}

// copyField decodes one table into dst when the old document carries
// it. A missing, null, or malformed field leaves the default in place.
func copyField[T any](fields map[string]json.RawMessage, key string, dst *T) {
	raw, ok := fields[key]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return
	}
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return
	}
	*dst = value
}
