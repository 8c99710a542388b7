package util

import (
	"strings"
	"testing"
)

func TestNewID(t *testing.T) {
	id := NewID("doc")
	if !strings.HasPrefix(id, "doc_") {
		t.Fatalf("id = %q", id)
	}
	if id == NewID("doc") {
		t.Fatal("ids must be unique")
	}
	if strings.Contains(NewID(""), "_") {
		t.Fatal("empty prefix must not add a separator")
	}
}

func TestSlugify(t *testing.T) {
	slug := Slugify("Launch Plan: Q3!")
	if !strings.HasPrefix(slug, "launch-plan-q3-") {
		t.Fatalf("slug = %q", slug)
	}
	if len(slug) != len("launch-plan-q3-")+8 {
		t.Fatalf("slug suffix length wrong: %q", slug)
	}

	if s := Slugify(""); !strings.HasPrefix(s, "untitled-") {
		t.Fatalf("empty title slug = %q", s)
	}
	if s := Slugify("日本語"); !strings.HasPrefix(s, "untitled-") {
		t.Fatalf("non-latin title slug = %q", s)
	}

	if Slugify("Same Title") == Slugify("Same Title") {
		t.Fatal("same title must slug differently")
	}
}
