package miniapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SentinelID is the reserved "undecided" category value. It is always the
// last selector entry.
const (
	SentinelID    int64 = 0
	SentinelLabel       = "undecided"
)

// InitDataHeader carries the raw Telegram init data to the category API.
const InitDataHeader = "X-Telegram-Init-Data"

// CategorySource supplies the categories offered by the link form.
type CategorySource interface {
	Categories(ctx context.Context) ([]Category, error)
}

// StaticCategorySource serves a fixed list.
type StaticCategorySource []Category

func (s StaticCategorySource) Categories(context.Context) ([]Category, error) {
	return append([]Category(nil), s...), nil
}

// HTTPCategorySource fetches categories from the linkbot API
// (GET <BaseURL>/api/categories).
type HTTPCategorySource struct {
	BaseURL string
	// InitData, when set, is forwarded in InitDataHeader.
	InitData string
	Client   *http.Client
}

func (s *HTTPCategorySource) Categories(ctx context.Context) ([]Category, error) {
	url := strings.TrimRight(strings.TrimSpace(s.BaseURL), "/") + "/api/categories"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if s.InitData != "" {
		req.Header.Set(InitDataHeader, s.InitData)
	}

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 8 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("categories: http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var out []Category
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("categories: decode: %w", err)
	}
	return out, nil
}

// BuildOptions maps categories to selector options and appends the sentinel.
func BuildOptions(cats []Category) []Option {
	out := make([]Option, 0, len(cats)+1)
	for _, c := range cats {
		if c.ID == SentinelID {
			continue
		}
		out = append(out, Option{ID: c.ID, Label: strings.TrimSpace(c.Emoji + " " + c.Name)})
	}
	return append(out, Option{ID: SentinelID, Label: SentinelLabel})
}
