package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"linkbot/internal/catalog"
)

// seedFile is the layout of a seed file:
//
//	categories:
//	  - name: News
//	    emoji: 📰
type seedFile struct {
	Categories []seedCategory `yaml:"categories"`
}

type seedCategory struct {
	Name  string `yaml:"name"`
	Emoji string `yaml:"emoji"`
}

func loadSeed(path string) ([]seedCategory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, c := range f.Categories {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("%s: category #%d has no name", path, i+1)
		}
	}
	return f.Categories, nil
}

type categoryAdder interface {
	AddCategory(ctx context.Context, name, emoji string, position int) (int64, error)
	ListCategories(ctx context.Context, onlyActive bool) ([]catalog.Category, error)
}

// seed appends categories after the existing ones, in file order.
func seed(ctx context.Context, st categoryAdder, cats []seedCategory) (added, skipped int, err error) {
	existing, err := st.ListCategories(ctx, false)
	if err != nil {
		return 0, 0, err
	}
	pos := len(existing)
	for _, c := range cats {
		_, aerr := st.AddCategory(ctx, strings.TrimSpace(c.Name), strings.TrimSpace(c.Emoji), pos)
		switch {
		case errors.Is(aerr, catalog.ErrDuplicate):
			skipped++
		case aerr != nil:
			return added, skipped, fmt.Errorf("add %q: %w", c.Name, aerr)
		default:
			added++
			pos++
		}
	}
	return added, skipped, nil
}
