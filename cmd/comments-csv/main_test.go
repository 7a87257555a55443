package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunConvertsJSON(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "comments.json")
	doc := `{"owner_id":-1,"video_id":2,"total_top_level":1,"comments":[
		{"id":1,"parent_id":null,"from":{"id":5,"name":"A B"},"date_iso":"2023-11-14T22:13:20.000Z","text":"hi","likes":2,"attachments":[],"replies":[
			{"id":2,"parent_id":1,"from":{"id":-7,"name":"Club"},"date_iso":"2023-11-14T22:13:21.000Z","text":"re","likes":0,"attachments":[],"replies":[]}
		]}
	]}`
	if err := os.WriteFile(in, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "comments.csv")

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-input", in, "-o", out}, &stdout, &stderr); code != 2 {
		t.Fatalf("unknown flag exit=%d", code)
	}
	stdout.Reset()
	stderr.Reset()
	if code := run([]string{"-in", in, "-output", out, "-d", ","}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit=%d stderr=%q", code, stderr.String())
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimPrefix(string(b), "\uFEFF"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines=%d: %q", len(lines), string(b))
	}
	if !strings.HasPrefix(lines[2], "2,1,1,") {
		t.Fatalf("reply row=%q", lines[2])
	}
	if !strings.Contains(stdout.String(), "Exported 2 rows") {
		t.Fatalf("stdout=%q", stdout.String())
	}
}

func TestRunMissingInput(t *testing.T) {
	dir := t.TempDir()
	var stdout, stderr bytes.Buffer
	code := run([]string{"-in", filepath.Join(dir, "missing.json"), "-out", filepath.Join(dir, "x.csv")}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("exit=%d", code)
	}
	if !strings.Contains(stderr.String(), "Export error") {
		t.Fatalf("stderr=%q", stderr.String())
	}
}
