package reconcile

// Merge reconciles the local view with an authoritative server snapshot.
// It is a total function over both ref variants and never overwrites the
// list wholesale:
//
//   - provisional entries stay, prepended in their existing order, until
//     submission either confirms them (they become confirmed rows and are
//     matched by server id) or fails
//   - each server row becomes a confirmed entry; when a local confirmed
//     entry with the same server id exists, local title/url are retained
//     wherever the server value is still empty, so a completed title in
//     flight never flickers back to blank
//   - local confirmed entries the snapshot does not mention yet (a create
//     racing the list read) are kept ahead of the snapshot rows
func Merge(local []Entry, snapshot []Page) []Entry {
	result := make([]Entry, 0, len(local)+len(snapshot))

	inSnapshot := make(map[string]bool, len(snapshot))
	for _, p := range snapshot {
		inSnapshot[p.ID] = true
	}

	byID := make(map[string]Entry, len(local))
	for _, entry := range local {
		if entry.Ref.IsProvisional() {
			result = append(result, entry)
			continue
		}
		id := entry.Ref.ID()
		byID[id] = entry
		if !inSnapshot[id] {
			result = append(result, entry)
		}
	}

	for _, p := range snapshot {
		entry := EntryFromPage(p)
		if prev, ok := byID[p.ID]; ok {
			if entry.Title == "" {
				entry.Title = prev.Title
			}
			if entry.URL == "" {
				entry.URL = prev.URL
			}
		}
		result = append(result, entry)
	}

	return result
}
