package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"vk-comments-exporter/internal/comments"
)

func ptr(v int64) *int64 { return &v }

func sampleForest() []comments.Node {
	return []comments.Node{
		{
			ID:   1,
			From: comments.Author{ID: 7, Name: "Ivan Petrov", ScreenName: "ivan"},
			Text: "first",
			Replies: []comments.Node{
				{ID: 2, ParentID: ptr(1), Text: "r1", Replies: []comments.Node{
					{ID: 3, ParentID: ptr(1), Text: "r1.1"},
				}},
				{ID: 4, ParentID: ptr(1), Text: "r2"},
			},
		},
		{ID: 5, From: comments.Author{ID: -9}, Text: "second"},
	}
}

func TestFlattenLineCountAndLevels(t *testing.T) {
	forest := sampleForest()
	out := Flatten(forest, "")
	lines := strings.Split(out, "\n")
	if len(lines) != comments.Count(forest)+1 {
		t.Fatalf("lines=%d, want %d", len(lines), comments.Count(forest)+1)
	}
	if lines[0] != strings.Join(Header, ";") {
		t.Fatalf("header=%q", lines[0])
	}
	if strings.HasSuffix(out, "\n") {
		t.Fatalf("unexpected trailing newline")
	}

	wantIDs := []string{"1", "2", "3", "4", "5"}
	wantLevels := []string{"0", "1", "2", "1", "0"}
	for i, line := range lines[1:] {
		f := strings.Split(line, ";")
		if f[0] != wantIDs[i] || f[2] != wantLevels[i] {
			t.Fatalf("row %d=%q, want id %s level %s", i, line, wantIDs[i], wantLevels[i])
		}
	}
}

func TestRowsPreOrderKeepsSubtreesContiguous(t *testing.T) {
	rows := Rows(sampleForest())
	// Row 0 is comment 1; its three descendants must follow before comment 5.
	for i := 1; i <= 3; i++ {
		if rows[i].ReplyLevel == 0 {
			t.Fatalf("row %d left the subtree early: %+v", i, rows[i])
		}
	}
	if rows[4].CommentID != 5 || rows[4].ReplyLevel != 0 {
		t.Fatalf("next sibling=%+v", rows[4])
	}
}

func TestFlattenAbsentFieldsAreEmpty(t *testing.T) {
	out := Flatten([]comments.Node{{ID: 9}}, ";")
	row := strings.Split(out, "\n")[1]
	if row != "9;;0;;;;;;0;0;" {
		t.Fatalf("row=%q", row)
	}
}

func TestEscapeField(t *testing.T) {
	cases := []struct{ in, want string }{
		{"plain", "plain"},
		{"a,b", "a,b"},
		{"a;b", `"a;b"`},
		{`say "hi"`, `"say ""hi"""`},
		{"line1\r\nline2\nline3\rline4", "line1 line2 line3 line4"},
		{"tab\there", "tab here"},
	}
	for _, tc := range cases {
		if got := escapeField(tc.in, ";"); got != tc.want {
			t.Fatalf("escapeField(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFlattenRoundTripsThroughCSVReader(t *testing.T) {
	texts := []string{
		`he said "no"; then left`,
		"multi\nline;\ttext",
		`"quoted"`,
		"plain",
	}
	forest := make([]comments.Node, 0, len(texts))
	for i, s := range texts {
		forest = append(forest, comments.Node{ID: int64(i + 1), Text: s})
	}

	r := csv.NewReader(strings.NewReader(Flatten(forest, ";")))
	r.Comma = ';'
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != len(texts)+1 {
		t.Fatalf("records=%d", len(records))
	}
	for i, s := range texts {
		want := singleLine(s)
		if got := records[i+1][7]; got != want {
			t.Fatalf("text %d=%q, want %q", i, got, want)
		}
	}
}

func TestFlattenScenarioDocument(t *testing.T) {
	doc := `{"comments":[{"id":1,"text":"hi","replies":[{"id":2,"parent_id":1,"text":"a,b","attachments":[{"type":"photo"}]}]}]}`
	forest, err := ReadJSON(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	lines := strings.Split(Flatten(forest, ";"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines=%d", len(lines))
	}
	f := strings.Split(lines[2], ";")
	if f[0] != "2" || f[1] != "1" || f[2] != "1" {
		t.Fatalf("row=%q", lines[2])
	}
	if f[7] != "a,b" {
		t.Fatalf("text=%q, want unquoted a,b", f[7])
	}
	if f[9] != "1" || f[10] != "photo" {
		t.Fatalf("attachments=%q,%q", f[9], f[10])
	}
}

func TestAttachmentTypesJoinedInOrder(t *testing.T) {
	rows := Rows([]comments.Node{{ID: 1, Attachments: []comments.Attachment{{Type: "photo"}, {Type: "video"}, {Type: "link"}}}})
	if rows[0].AttachmentCount != 3 || rows[0].AttachmentTypes != "photo|video|link" {
		t.Fatalf("row=%+v", rows[0])
	}
}

func TestWriteCSVPrefixesBOM(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleForest(), ","); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "\xEF\xBB\xBFcomment_id,parent_id,") {
		t.Fatalf("prefix=%q", buf.String()[:20])
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, sampleForest()); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 6 {
		t.Fatalf("rows=%d, want 6", len(rows))
	}
	if rows[0][0] != "comment_id" || rows[3][0] != "3" || rows[3][2] != "2" {
		t.Fatalf("rows=%v", rows)
	}
	if rows[1][4] != "Ivan Petrov" {
		t.Fatalf("author=%q", rows[1][4])
	}
}

func TestReadJSONWithoutComments(t *testing.T) {
	for _, doc := range []string{`{}`, `{"comments":null}`, `{"comments":{"id":1}}`, `[1,2]`} {
		forest, err := ReadJSON(strings.NewReader(doc))
		if err != nil {
			t.Fatalf("ReadJSON(%s): %v", doc, err)
		}
		if len(forest) != 0 {
			t.Fatalf("ReadJSON(%s)=%v", doc, forest)
		}
	}
	if _, err := ReadJSON(strings.NewReader(`{"comments":`)); err == nil {
		t.Fatalf("expected error for truncated document")
	}
}

func TestWriteJSONKeepsHTML(t *testing.T) {
	var buf bytes.Buffer
	res := comments.Result{OwnerID: 1, VideoID: 2, Comments: []comments.Node{{ID: 1, Text: "<b>&</b>", Replies: []comments.Node{}}}}
	if err := WriteJSON(&buf, res); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	s := buf.String()
	if !strings.Contains(s, `"text": "<b>&</b>"`) {
		t.Fatalf("html escaped or not indented: %s", s)
	}
	if !strings.Contains(s, `"parent_id": null`) || !strings.Contains(s, `"replies": []`) {
		t.Fatalf("unexpected shape: %s", s)
	}
}
