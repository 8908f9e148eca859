package services

import (
	"errors"
	"testing"
)

func TestParseCourseDocument_FullFormat(t *testing.T) {
	course, err := ParseCourseDocument(courseDoc)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if course.Title != "Building Towards Computer Use" {
		t.Errorf("unexpected title %q", course.Title)
	}
	if course.Link != "https://example.com/computer-use" || course.Instructor != "Colt Steele" {
		t.Errorf("header fields not parsed: %+v", course)
	}
	if len(course.Lessons) != 3 {
		t.Fatalf("expected 3 lessons, got %d", len(course.Lessons))
	}
	l2 := course.Lessons[2]
	if l2.Number != 2 || l2.Title != "Prompt Caching" || l2.Link != "https://example.com/computer-use/2" {
		t.Errorf("unexpected lesson 2: %+v", l2)
	}
	if l2.Content != "Prompt caching stores the processed prefix of a prompt so repeated requests are cheaper and faster." {
		t.Errorf("unexpected lesson 2 content %q", l2.Content)
	}
	if _, ok := course.LessonByNumber(1); !ok {
		t.Error("lesson 1 not found by number")
	}
}

func TestParseCourseDocument_MissingTitleMarker(t *testing.T) {
	course, err := ParseCourseDocument("\n\nIntro to Go\n\nGo is a small language.\nIt compiles quickly.\n")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if course.Title != "Intro to Go" {
		t.Errorf("expected first line as title, got %q", course.Title)
	}
	if len(course.Lessons) != 1 {
		t.Fatalf("expected a single lesson, got %d", len(course.Lessons))
	}
	l := course.Lessons[0]
	if l.Number != 0 || l.Title != "Intro to Go" {
		t.Errorf("expected lesson 0 titled after the course, got %+v", l)
	}
	if l.Content != "Go is a small language.\nIt compiles quickly." {
		t.Errorf("unexpected body %q", l.Content)
	}
}

func TestParseCourseDocument_LessonMarkersCaseInsensitive(t *testing.T) {
	doc := "course title: Lower\nlesson 3: Late start\nbody three\nLESSON 4:\nbody four"
	course, err := ParseCourseDocument(doc)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(course.Lessons) != 2 {
		t.Fatalf("expected 2 lessons, got %d", len(course.Lessons))
	}
	if course.Lessons[0].Number != 3 || course.Lessons[1].Title != "Lesson 4" {
		t.Errorf("unexpected lessons: %+v", course.Lessons)
	}
}

func TestParseCourseDocument_Empty(t *testing.T) {
	tests := []string{
		"",
		"   \n\n  ",
		"Course Title: Only A Title\n",
		"Course Title: Hollow\nLesson 0: Nothing\n\nLesson 1: Still nothing\n",
	}
	for _, doc := range tests {
		if _, err := ParseCourseDocument(doc); !errors.Is(err, ErrEmptyDocument) {
			t.Errorf("ParseCourseDocument(%q) error = %v, want ErrEmptyDocument", doc, err)
		}
	}
}

func TestParseCourseDocument_PreludeBecomesDescription(t *testing.T) {
	doc := "Course Title: Prelude\nA short overview\nof the course.\n\nLesson 0: One\nText."
	course, err := ParseCourseDocument(doc)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if course.Description != "A short overview of the course." {
		t.Errorf("unexpected description %q", course.Description)
	}
}
