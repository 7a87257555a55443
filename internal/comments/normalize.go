package comments

import (
	"time"

	"vk-comments-exporter/internal/vk"
)

const isoMillis = "2006-01-02T15:04:05.000Z"

// authorIndex resolves from_id values against the profiles and groups returned
// alongside one page. It is never shared between pages.
type authorIndex struct {
	people map[int64]vk.Profile
	groups map[int64]vk.Group
}

func newAuthorIndex(profiles []vk.Profile, groups []vk.Group) authorIndex {
	idx := authorIndex{
		people: make(map[int64]vk.Profile, len(profiles)),
		groups: make(map[int64]vk.Group, len(groups)),
	}
	for _, p := range profiles {
		idx.people[p.ID] = p
	}
	for _, g := range groups {
		idx.groups[g.ID] = g
	}
	return idx
}

func (idx authorIndex) resolve(ref int64) Author {
	if ref > 0 {
		if p, ok := idx.people[ref]; ok {
			return Author{
				ID:         p.ID,
				Name:       p.FirstName + " " + p.LastName,
				ScreenName: p.Domain,
			}
		}
		return Author{ID: ref}
	}
	if g, ok := idx.groups[-ref]; ok {
		return Author{ID: -g.ID, Name: g.Name, ScreenName: g.ScreenName}
	}
	return Author{ID: ref}
}

func formatDate(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(isoMillis)
}

func normalize(raw vk.RawComment, idx authorIndex) Node {
	n := Node{
		ID:          raw.ID,
		From:        idx.resolve(raw.FromID),
		DateISO:     formatDate(raw.Date),
		Text:        raw.Text,
		Attachments: make([]Attachment, 0, len(raw.Attachments)),
		Replies:     []Node{},
	}
	if p, ok := raw.FirstParent(); ok {
		n.ParentID = &p
	}
	if raw.Likes != nil && raw.Likes.Count > 0 {
		n.Likes = raw.Likes.Count
	}
	for _, a := range raw.Attachments {
		n.Attachments = append(n.Attachments, Attachment{Type: a.Type})
	}
	return n
}

func normalizeAll(items []vk.RawComment, idx authorIndex) []Node {
	out := make([]Node, 0, len(items))
	for _, it := range items {
		out = append(out, normalize(it, idx))
	}
	return out
}
