package article

import (
	"strings"
	"testing"
)

func TestHash_Deterministic(t *testing.T) {
	h1 := Hash("Title", "Content")
	h2 := Hash("Title", "Content")

	if h1 != h2 {
		t.Errorf("Expected identical hashes for identical input, got %s and %s", h1, h2)
	}
}

func TestHash_Format(t *testing.T) {
	h := Hash("Title", "Content")

	if len(h) != 64 {
		t.Errorf("Expected 64 hex characters, got %d", len(h))
	}
	if strings.ToLower(h) != h {
		t.Errorf("Expected lowercase hex, got %s", h)
	}
}

func TestHash_SensitiveToBothFields(t *testing.T) {
	base := Hash("Title", "Content")

	if Hash("Other title", "Content") == base {
		t.Error("Hash should change when the title changes")
	}
	if Hash("Title", "Other content") == base {
		t.Error("Hash should change when the content changes")
	}
}

func TestHash_ConcatenationOrder(t *testing.T) {
	// "ab"+"c" and "a"+"bc" concatenate to the same string; identity is
	// defined over the concatenation, so they must collide.
	if Hash("ab", "c") != Hash("a", "bc") {
		t.Error("Hash is defined over title+content concatenation")
	}
}

func TestHash_EmptyInput(t *testing.T) {
	h := Hash("", "")

	// sha256 of the empty string
	expected := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if h != expected {
		t.Errorf("Expected %s, got %s", expected, h)
	}
}
