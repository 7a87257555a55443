package vk

// RawComment is one element of video.getComments items, including the items
// inlined under a top-level comment's thread.
type RawComment struct {
	ID          int64           `json:"id"`
	FromID      int64           `json:"from_id"`
	Date        int64           `json:"date"`
	Text        string          `json:"text"`
	Likes       *RawLikes       `json:"likes,omitempty"`
	Attachments []RawAttachment `json:"attachments,omitempty"`
	// ParentsStack is the documented field name; ParentStack is accepted for
	// older payloads.
	ParentsStack []int64    `json:"parents_stack,omitempty"`
	ParentStack  []int64    `json:"parent_stack,omitempty"`
	Thread       *RawThread `json:"thread,omitempty"`
}

// FirstParent returns parents_stack[0] (or parent_stack[0]); ok is false for
// top-level comments.
func (c RawComment) FirstParent() (int64, bool) {
	if len(c.ParentsStack) > 0 {
		return c.ParentsStack[0], true
	}
	if len(c.ParentStack) > 0 {
		return c.ParentStack[0], true
	}
	return 0, false
}

type RawLikes struct {
	Count int `json:"count"`
}

type RawAttachment struct {
	Type string `json:"type"`
}

type RawThread struct {
	Count    int          `json:"count"`
	Items    []RawComment `json:"items,omitempty"`
	Profiles []Profile    `json:"profiles,omitempty"`
	Groups   []Group      `json:"groups,omitempty"`
}

type Profile struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Domain    string `json:"domain"`
}

type Group struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	ScreenName string `json:"screen_name"`
}

// CommentsQuery addresses one page of video.getComments. CommentID selects a
// reply thread; zero means top-level comments.
type CommentsQuery struct {
	OwnerID   int64
	VideoID   int64
	CommentID int64
	Offset    int
	Count     int
	Sort      string
}

type CommentsPage struct {
	Count    int          `json:"count"`
	Items    []RawComment `json:"items"`
	Profiles []Profile    `json:"profiles"`
	Groups   []Group      `json:"groups"`
}

type APIError struct {
	ErrorCode int    `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

type envelope struct {
	Response *CommentsPage `json:"response"`
	Error    *APIError     `json:"error"`
}
