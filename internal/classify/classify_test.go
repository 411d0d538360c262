package classify

import (
	"testing"

	"github.com/hyperjump/reposync/internal/models"
)

func TestClassify_rulesFirstMatchWins(t *testing.T) {
	c := New([]models.ClassificationRule{
		{PathPrefix: "docs/adr/", Type: "documentation", Subtype: "adr"},
		{PathPrefix: "docs/", Type: "documentation", Subtype: "docs"},
	})
	attrs, ok := c.Classify("docs/adr/0001.md")
	if !ok {
		t.Fatal("expected docs/adr/0001.md to be indexed")
	}
	if attrs[models.AttrSubtype] != "adr" {
		t.Errorf("subtype = %q, want adr", attrs[models.AttrSubtype])
	}
	attrs, ok = c.Classify("docs/guide.md")
	if !ok || attrs[models.AttrSubtype] != "docs" {
		t.Errorf("docs/guide.md: got %v, %v", attrs, ok)
	}
}

func TestClassify_normalizesPath(t *testing.T) {
	c := New(nil)
	attrs, ok := c.Classify(`.\internal\a.go`)
	if !ok {
		t.Fatal("expected internal file to be indexed")
	}
	if attrs.Path() != "internal/a.go" {
		t.Errorf("path = %q, want internal/a.go", attrs.Path())
	}
	if attrs[models.AttrType] != "code" || attrs[models.AttrSubtype] != "business_logic" {
		t.Errorf("unexpected attributes: %v", attrs)
	}
}

func TestClassify_extensionFallback(t *testing.T) {
	c := New(nil)
	tests := []struct {
		path string
		want bool
	}{
		{"main.go", true},
		{"web/app.TSX", true},
		{"notes.md", true},
		{"logo.png", false},
		{"bin/tool", false},
		{"archive.tar.gz", false},
		{"trailing.", false},
		{"", false},
		{"   ", false},
	}
	for _, tt := range tests {
		attrs, ok := c.Classify(tt.path)
		if ok != tt.want {
			t.Errorf("Classify(%q) ok = %v, want %v", tt.path, ok, tt.want)
			continue
		}
		if ok && (attrs[models.AttrType] != FallbackType || attrs[models.AttrSubtype] != FallbackSubtype) {
			t.Errorf("Classify(%q) = %v, want code/other", tt.path, attrs)
		}
	}
}

func TestClassify_ruleMatchesNonCodeExtension(t *testing.T) {
	c := New([]models.ClassificationRule{{PathPrefix: "assets/", Type: "asset", Subtype: "image"}})
	if _, ok := c.Classify("assets/logo.png"); !ok {
		t.Error("prefix rule should win over the extension allow-list")
	}
}

func TestClassify_blankPrefixIgnored(t *testing.T) {
	c := New([]models.ClassificationRule{{PathPrefix: " ", Type: "x", Subtype: "y"}})
	if _, ok := c.Classify("logo.png"); ok {
		t.Error("blank prefix must not match everything")
	}
}

func TestClassify_deterministic(t *testing.T) {
	c := New(nil)
	a1, ok1 := c.Classify("cmd/reposync/main.go")
	a2, ok2 := c.Classify("cmd/reposync/main.go")
	if ok1 != ok2 || a1.Path() != a2.Path() || a1[models.AttrSubtype] != a2[models.AttrSubtype] {
		t.Errorf("classification should be deterministic: %v vs %v", a1, a2)
	}
}
