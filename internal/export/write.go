package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"vk-comments-exporter/internal/comments"
)

// BOM makes Excel open the UTF-8 CSV with the right encoding.
const BOM = "\uFEFF"

const SheetName = "Comments"

func WriteCSV(w io.Writer, forest []comments.Node, delimiter string) error {
	_, err := io.WriteString(w, BOM+Flatten(forest, delimiter))
	return err
}

// WriteXLSX writes the flattened rows into a single-sheet workbook. Cells are
// typed: ids and counts are numbers, the rest text.
func WriteXLSX(w io.Writer, forest []comments.Node) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return err
	}
	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return err
	}

	for i, r := range Rows(forest) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{
			r.CommentID,
			"",
			r.ReplyLevel,
			"",
			r.AuthorName,
			r.AuthorScreenName,
			r.DateISO,
			singleLine(r.Text),
			r.Likes,
			r.AttachmentCount,
			r.AttachmentTypes,
		}
		if r.ParentID != nil {
			values[1] = *r.ParentID
		}
		if r.AuthorID != 0 {
			values[3] = r.AuthorID
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return err
		}
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	_, err := f.WriteTo(w)
	return err
}

// WriteJSON writes v as two-space indented JSON without HTML escaping.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ReadJSON returns the "comments" array of an exported document. A document
// without one yields an empty forest.
func ReadJSON(r io.Reader) ([]comments.Node, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(bytes.TrimPrefix(data, []byte(BOM)))
	if !bytes.HasPrefix(data, []byte("{")) {
		if !json.Valid(data) {
			return nil, fmt.Errorf("decode comments document: invalid JSON")
		}
		return []comments.Node{}, nil
	}
	var doc struct {
		Comments json.RawMessage `json:"comments"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode comments document: %w", err)
	}
	raw := strings.TrimSpace(string(doc.Comments))
	if !strings.HasPrefix(raw, "[") {
		return []comments.Node{}, nil
	}
	var forest []comments.Node
	if err := json.Unmarshal(doc.Comments, &forest); err != nil {
		return nil, fmt.Errorf("decode comments: %w", err)
	}
	return forest, nil
}
