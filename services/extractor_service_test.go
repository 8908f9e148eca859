package services

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Course Title: Word Course</w:t></w:r></w:p>
<w:p><w:r><w:t>Lesson 0: </w:t></w:r><w:r><w:t>Opening</w:t></w:r></w:p>
<w:p><w:r><w:t>Tables</w:t><w:tab/><w:t>and tabs.</w:t></w:r></w:p>
</w:body>
</w:document>`

func writeDOCX(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create docx: %v", err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("zip entry: %v", err)
	}
	if _, err := w.Write([]byte(body)); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return path
}

func TestDocumentExtractor_PlainText(t *testing.T) {
	e := NewDocumentExtractor("", nopLog())
	path := writeFile(t, t.TempDir(), "course.md", "Course Title: X\r\nLesson 0: A\r\nbody")
	text, err := e.ExtractTextFromFile(path)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if strings.Contains(text, "\r") {
		t.Errorf("carriage returns not normalised: %q", text)
	}
}

func TestDocumentExtractor_DOCX(t *testing.T) {
	e := NewDocumentExtractor("", nopLog())
	path := writeDOCX(t, t.TempDir(), "course.docx", documentXML)
	text, err := e.ExtractTextFromFile(path)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	for _, want := range []string{"Course Title: Word Course\n", "Lesson 0: Opening\n", "Tables\tand tabs."} {
		if !strings.Contains(text, want) {
			t.Errorf("docx text missing %q:\n%s", want, text)
		}
	}

	course, err := ParseCourseDocument(text)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if course.Title != "Word Course" || len(course.Lessons) != 1 {
		t.Errorf("unexpected course %+v", course)
	}
}

func TestDocumentExtractor_Errors(t *testing.T) {
	e := NewDocumentExtractor("", nopLog())
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
		want error
	}{
		{name: "unknown extension", path: writeFile(t, dir, "a.xlsx", "data"), want: ErrUnsupportedFormat},
		{name: "empty text", path: writeFile(t, dir, "b.txt", " \n\t"), want: ErrEmptyDocument},
		{name: "corrupt docx", path: writeFile(t, dir, "c.docx", "not a zip"), want: ErrUnsupportedFormat},
		{name: "docx without body", path: writeDOCX(t, dir, "d.docx", `<w:document xmlns:w="x"><w:body/></w:document>`), want: ErrEmptyDocument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.ExtractTextFromFile(tt.path); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDocsRoot_Resolve(t *testing.T) {
	root, err := NewDocsRoot(t.TempDir())
	if err != nil {
		t.Fatalf("docs root: %v", err)
	}
	if got, _ := root.Resolve(""); got != root.Dir {
		t.Errorf("empty path should resolve to root, got %q", got)
	}
	if got, err := root.Resolve("sub/dir"); err != nil || got != filepath.Join(root.Dir, "sub", "dir") {
		t.Errorf("unexpected resolution %q, %v", got, err)
	}
	for _, bad := range []string{"..", "../x", "sub/../../x", "/etc"} {
		if _, err := root.Resolve(bad); !errors.Is(err, ErrOutsideDocsRoot) {
			t.Errorf("Resolve(%q) = %v, want ErrOutsideDocsRoot", bad, err)
		}
	}
	if _, err := root.ResolveDir("missing"); err == nil {
		t.Error("missing directory should fail")
	}
}
