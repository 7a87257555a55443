package export

import (
	"strconv"
	"strings"

	"vk-comments-exporter/internal/comments"
)

const DefaultDelimiter = ";"

// Header lists the flattened columns in output order.
var Header = []string{
	"comment_id",
	"parent_id",
	"reply_level",
	"author_id",
	"author_name",
	"author_screen_name",
	"date_iso",
	"text",
	"likes",
	"attachments_count",
	"attachment_types",
}

// Row is one comment flattened for spreadsheets. ReplyLevel is the node's
// depth in the forest, zero for top-level comments.
type Row struct {
	CommentID        int64
	ParentID         *int64
	ReplyLevel       int
	AuthorID         int64
	AuthorName       string
	AuthorScreenName string
	DateISO          string
	Text             string
	Likes            int
	AttachmentCount  int
	AttachmentTypes  string
}

// Values returns the row's fields in Header order, unescaped. Absent values
// are empty strings.
func (r Row) Values() []string {
	parent := ""
	if r.ParentID != nil {
		parent = strconv.FormatInt(*r.ParentID, 10)
	}
	author := ""
	if r.AuthorID != 0 {
		author = strconv.FormatInt(r.AuthorID, 10)
	}
	return []string{
		strconv.FormatInt(r.CommentID, 10),
		parent,
		strconv.Itoa(r.ReplyLevel),
		author,
		r.AuthorName,
		r.AuthorScreenName,
		r.DateISO,
		r.Text,
		strconv.Itoa(r.Likes),
		strconv.Itoa(r.AttachmentCount),
		r.AttachmentTypes,
	}
}

// Rows walks the forest depth-first in pre-order: a node's row, then its
// replies, then the next sibling.
func Rows(forest []comments.Node) []Row {
	rows := make([]Row, 0, comments.Count(forest))
	var walk func(n comments.Node, level int)
	walk = func(n comments.Node, level int) {
		kinds := make([]string, 0, len(n.Attachments))
		for _, a := range n.Attachments {
			kinds = append(kinds, a.Type)
		}
		rows = append(rows, Row{
			CommentID:        n.ID,
			ParentID:         n.ParentID,
			ReplyLevel:       level,
			AuthorID:         n.From.ID,
			AuthorName:       n.From.Name,
			AuthorScreenName: n.From.ScreenName,
			DateISO:          n.DateISO,
			Text:             n.Text,
			Likes:            n.Likes,
			AttachmentCount:  len(n.Attachments),
			AttachmentTypes:  strings.Join(kinds, "|"),
		})
		for _, r := range n.Replies {
			walk(r, level+1)
		}
	}
	for _, n := range forest {
		walk(n, 0)
	}
	return rows
}

// Flatten renders the forest as delimited text: a header line and one line
// per node, joined by "\n" with no trailing newline. An empty delimiter
// means ";".
func Flatten(forest []comments.Node, delimiter string) string {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	rows := Rows(forest)
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, joinEscaped(Header, delimiter))
	for _, r := range rows {
		lines = append(lines, joinEscaped(r.Values(), delimiter))
	}
	return strings.Join(lines, "\n")
}

func joinEscaped(values []string, delimiter string) string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = escapeField(v, delimiter)
	}
	return strings.Join(out, delimiter)
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ")

// singleLine replaces line breaks and tabs with spaces; "\r\n" counts as one
// break.
func singleLine(s string) string {
	return lineBreaks.Replace(s)
}

// escapeField makes v safe as one field: line breaks and tabs become spaces,
// then the field is quoted if it holds a quote or the delimiter.
func escapeField(v, delimiter string) string {
	s := singleLine(v)
	if !strings.Contains(s, `"`) && !strings.Contains(s, delimiter) && !strings.ContainsAny(s, "\r\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
