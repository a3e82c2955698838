package store

import (
	"strings"
	"testing"

	"soulconnect-chat/internal/models"
)

func TestMigrateURL(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@db:5432/app":   "pgx5://u:p@db:5432/app",
		"postgresql://u:p@db:5432/app": "pgx5://u:p@db:5432/app",
		"pgx5://db/app":                "pgx5://db/app",
	}
	for in, want := range cases {
		if got := migrateURL(in); got != want {
			t.Errorf("migrateURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var up, down int
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			up++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			down++
		}
	}
	if up == 0 || up != down {
		t.Fatalf("expected paired up/down migrations, got %d up and %d down", up, down)
	}
}

func TestPreviewTruncatesAndLabelsImages(t *testing.T) {
	long := strings.Repeat("é", 150)
	got := Preview(&models.Message{Type: models.MessageText, Content: long})
	if n := len([]rune(got)); n != previewLength {
		t.Fatalf("expected %d runes, got %d", previewLength, n)
	}
	if got := Preview(&models.Message{Type: models.MessageImage, Content: "https://cdn/x.png"}); got != "[image]" {
		t.Fatalf("unexpected image preview %q", got)
	}
	if got := Preview(&models.Message{Type: models.MessageText, Content: "hi"}); got != "hi" {
		t.Fatalf("unexpected preview %q", got)
	}
}
