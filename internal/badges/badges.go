// Package badges resolves a user's badge set/version pairs against the
// merged global+channel badge catalog and keeps the process-wide custom
// badge overrides.
package badges

import "sync"

// Version is one visual variant of a badge set.
type Version struct {
	ID          string `json:"id"`
	ImageURL1x  string `json:"image_url_1x"`
	ImageURL2x  string `json:"image_url_2x"`
	ImageURL4x  string `json:"image_url_4x"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Set is a named collection of badge versions (e.g. "subscriber").
type Set struct {
	SetID    string    `json:"set_id"`
	Versions []Version `json:"versions"`
}

// Catalog holds the global and channel badge sets keyed by set id. Channel
// entries shadow global ones during resolution.
type Catalog struct {
	Global  map[string]Set
	Channel map[string]Set
}

// MapSets converts the list form returned by the catalog source into the
// set_id-keyed mapping used for lookup.
func MapSets(sets []Set) map[string]Set {
	m := make(map[string]Set, len(sets))
	for _, s := range sets {
		if s.SetID == "" {
			continue
		}
		m[s.SetID] = s
	}
	return m
}

// Resolve returns the 4x image URL for a badge set/version pair. The channel
// catalog is consulted first; when the set or the version is absent there,
// the global catalog is tried with the same two-step lookup.
func (c Catalog) Resolve(setID, version string) (string, bool) {
	if url, ok := lookup(c.Channel, setID, version); ok {
		return url, true
	}
	return lookup(c.Global, setID, version)
}

func lookup(sets map[string]Set, setID, version string) (string, bool) {
	set, ok := sets[setID]
	if !ok {
		return "", false
	}
	for _, v := range set.Versions {
		if v.ID == version {
			return v.ImageURL4x, true
		}
	}
	return "", false
}

// CustomBadges is the process-wide custom badge override list: append-only,
// first match wins, additive to catalog-resolved badges. The mutex makes the
// shared list safe for concurrent transport and admin callers.
type CustomBadges struct {
	mu      sync.Mutex
	entries []CustomBadge
}

// CustomBadge ties a badge image to one username, out of band of the
// catalog.
type CustomBadge struct {
	Username string `json:"username"`
	ImageURL string `json:"image_url"`
}

// Add appends an override. Duplicate usernames are kept as-is; Get keeps
// returning the earliest entry.
func (s *CustomBadges) Add(username, imageURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, CustomBadge{Username: username, ImageURL: imageURL})
}

// Get returns the first override registered for a username.
func (s *CustomBadges) Get(username string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.Username == username {
			return e.ImageURL, true
		}
	}
	return "", false
}

// List returns a snapshot of all overrides in registration order.
func (s *CustomBadges) List() []CustomBadge {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CustomBadge, len(s.entries))
	copy(out, s.entries)
	return out
}
