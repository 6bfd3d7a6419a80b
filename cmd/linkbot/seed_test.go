package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"linkbot/internal/catalog"
	logx "linkbot/pkg/logx"
)

func TestSeedSkipsExisting(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "cats.yaml")
	body := "categories:\n  - name: News\n    emoji: \"📰\"\n  - name: Tools\n"
	if err := os.WriteFile(file, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	seeds, err := loadSeed(file)
	if err != nil || len(seeds) != 2 || seeds[0].Emoji != "📰" {
		t.Fatalf("loadSeed = %+v, %v", seeds, err)
	}

	ctx := context.Background()
	st, err := catalog.Open(ctx, catalog.Config{Path: filepath.Join(dir, "seed.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()
	if _, err := st.AddCategory(ctx, "News", "🗞", 0); err != nil {
		t.Fatalf("AddCategory: %v", err)
	}

	added, skipped, err := seed(ctx, st, seeds)
	if err != nil || added != 1 || skipped != 1 {
		t.Fatalf("seed = %d added, %d skipped, %v", added, skipped, err)
	}
	cats, _ := st.ListCategories(ctx, false)
	if len(cats) != 2 || cats[1].Name != "Tools" || cats[1].Position != 1 {
		t.Fatalf("categories = %+v", cats)
	}
}

func TestLoadSeedRejectsNameless(t *testing.T) {
	file := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(file, []byte("categories:\n  - emoji: x\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadSeed(file); err == nil {
		t.Fatalf("nameless category accepted")
	}
}
