package comments

// Node is one normalized comment. Replies hold the comment's thread in
// upstream (ascending) order; top-level nodes have a nil ParentID.
type Node struct {
	ID          int64        `json:"id"`
	ParentID    *int64       `json:"parent_id"`
	From        Author       `json:"from"`
	DateISO     string       `json:"date_iso"`
	Text        string       `json:"text"`
	Likes       int          `json:"likes"`
	Attachments []Attachment `json:"attachments"`
	Replies     []Node       `json:"replies"`
}

// Author is the resolved comment author. Name and ScreenName are empty when
// the author was missing from the page's lookup tables.
type Author struct {
	ID         int64  `json:"id"`
	Name       string `json:"name,omitempty"`
	ScreenName string `json:"screen_name,omitempty"`
}

type Attachment struct {
	Type string `json:"type"`
}

type Result struct {
	OwnerID       int64  `json:"owner_id"`
	VideoID       int64  `json:"video_id"`
	TotalTopLevel int    `json:"total_top_level"`
	Comments      []Node `json:"comments"`
}

// Count returns the number of nodes in the forest, replies included.
func Count(forest []Node) int {
	n := 0
	for _, c := range forest {
		n += 1 + Count(c.Replies)
	}
	return n
}
