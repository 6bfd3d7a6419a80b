package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	logx "linkbot/pkg/logx"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "links.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

func TestCategories(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	news, err := s.AddCategory(ctx, "News", "📰", 1)
	if err != nil {
		t.Fatalf("AddCategory: %v", err)
	}
	tools, _ := s.AddCategory(ctx, "Tools", "🛠", 0)
	if _, err := s.AddCategory(ctx, "news", "x", 0); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate name should fail with ErrDuplicate, got %v", err)
	}

	got, err := s.ListCategories(ctx, true)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(got) != 2 || got[0].ID != tools || got[1].ID != news {
		t.Fatalf("order by position: %+v", got)
	}
	if got[0].Label() != "🛠 Tools" {
		t.Fatalf("label = %q", got[0].Label())
	}

	active, err := s.ToggleCategory(ctx, tools)
	if err != nil || active {
		t.Fatalf("ToggleCategory = %v, %v", active, err)
	}
	onlyActive, _ := s.ListCategories(ctx, true)
	all, _ := s.ListCategories(ctx, false)
	if len(onlyActive) != 1 || len(all) != 2 {
		t.Fatalf("active=%d all=%d", len(onlyActive), len(all))
	}
	if _, err := s.ToggleCategory(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("toggle missing = %v", err)
	}

	if err := s.UpdateCategory(ctx, news, ptr("Daily news"), nil); err != nil {
		t.Fatalf("UpdateCategory: %v", err)
	}
	c, err := s.GetCategory(ctx, news)
	if err != nil || c.Name != "Daily news" || c.Emoji != "📰" {
		t.Fatalf("GetCategory = %+v, %v", c, err)
	}
	if _, err := s.GetCategory(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing category = %v", err)
	}
}

func TestLinkLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	if err := s.UpsertUser(ctx, 42, "alice", "Alice", ""); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	cat, _ := s.AddCategory(ctx, "Go", "🐹", 0)

	id, err := s.AddLink(ctx, NewLink{
		UserID: ptr(int64(42)),
		Name:   "Tour",
		URL:    "https://go.dev/tour",
	})
	if err != nil {
		t.Fatalf("AddLink: %v", err)
	}

	l, err := s.GetLink(ctx, id)
	if err != nil {
		t.Fatalf("GetLink: %v", err)
	}
	if l.Status != StatusPending || l.CategoryID != nil || l.Description != nil || l.ModeratedAt != nil {
		t.Fatalf("new link = %+v", l)
	}
	if l.AuthorUsername != "alice" || l.CreatedAt.IsZero() {
		t.Fatalf("joined author / created_at missing: %+v", l)
	}

	pending, _ := s.ListPendingLinks(ctx, 0)
	if len(pending) != 1 || pending[0].ID != id {
		t.Fatalf("pending = %+v", pending)
	}

	if err := s.SetLinkStatus(ctx, id, StatusApproved, nil, &cat); err != nil {
		t.Fatalf("SetLinkStatus: %v", err)
	}
	l, _ = s.GetLink(ctx, id)
	if l.Status != StatusApproved || l.CategoryID == nil || *l.CategoryID != cat || l.CategoryName != "Go" || l.ModeratedAt == nil {
		t.Fatalf("approved link = %+v", l)
	}

	byCat, _ := s.ListLinksByCategory(ctx, cat, StatusApproved)
	if len(byCat) != 1 {
		t.Fatalf("by category = %d", len(byCat))
	}
	cats, _ := s.ListCategories(ctx, true)
	if cats[0].Links != 1 {
		t.Fatalf("approved count = %d", cats[0].Links)
	}

	if err := s.SetLinkStatus(ctx, 999, StatusRejected, ptr("spam"), nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("moderating missing link = %v", err)
	}
	if err := s.SetLinkStatus(ctx, id, Status("bogus"), nil, nil); err == nil {
		t.Fatalf("invalid status accepted")
	}

	mine, _ := s.ListUserLinks(ctx, 42)
	if len(mine) != 1 {
		t.Fatalf("user links = %d", len(mine))
	}
}

func TestDeleteCategoryUncategorizesLinks(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	cat, _ := s.AddCategory(ctx, "Temp", "⏳", 0)
	id, _ := s.AddLink(ctx, NewLink{CategoryID: &cat, Name: "x", URL: "https://x.org", Status: StatusApproved})

	if err := s.DeleteCategory(ctx, cat); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	l, err := s.GetLink(ctx, id)
	if err != nil {
		t.Fatalf("link should survive: %v", err)
	}
	if l.CategoryID != nil {
		t.Fatalf("category_id = %v, want NULL", *l.CategoryID)
	}
	if err := s.DeleteCategory(ctx, cat); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete = %v", err)
	}
}

func TestClicksStatsAndTop(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	_ = s.UpsertUser(ctx, 1, "", "", "")
	a, _ := s.AddLink(ctx, NewLink{Name: "a", URL: "https://a.org", Status: StatusApproved})
	b, _ := s.AddLink(ctx, NewLink{Name: "b", URL: "https://b.org", Status: StatusApproved})
	_, _ = s.AddLink(ctx, NewLink{Name: "c", URL: "https://c.org"})

	for range 3 {
		if err := s.IncrementClicks(ctx, b, ptr(int64(1))); err != nil {
			t.Fatalf("IncrementClicks: %v", err)
		}
	}
	_ = s.IncrementClicks(ctx, a, nil)
	if err := s.IncrementClicks(ctx, 999, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("click on missing link = %v", err)
	}

	top, err := s.TopLinks(ctx, 5)
	if err != nil {
		t.Fatalf("TopLinks: %v", err)
	}
	if len(top) != 2 || top[0].ID != b || top[0].Clicks != 3 {
		t.Fatalf("top = %+v", top)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := Stats{Users: 1, Approved: 2, Pending: 1, Clicks: 4}
	if st != want {
		t.Fatalf("stats = %+v, want %+v", st, want)
	}
}

func TestAudit(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	if err := s.AppendAudit(ctx, AuditEntry{ActorID: 7, Action: "link.approve", Target: "link:1"}); err != nil {
		t.Fatalf("AppendAudit: %v", err)
	}
	got, err := s.RecentAudit(ctx, 10)
	if err != nil {
		t.Fatalf("RecentAudit: %v", err)
	}
	if len(got) != 1 || got[0].ID == "" || got[0].At.IsZero() || got[0].Meta != nil {
		t.Fatalf("audit = %+v", got)
	}
}

func TestUpsertUserKeepsRole(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	_ = s.UpsertUser(ctx, 5, "old", "Old", "owner")
	_ = s.UpsertUser(ctx, 5, "new", "New", "user")
	u, err := s.GetUser(ctx, 5)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.Role != "owner" || u.Username == nil || *u.Username != "new" {
		t.Fatalf("user = %+v", u)
	}
}

func TestModerateLinkOnlyOnce(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	cat, _ := s.AddCategory(ctx, "Docs", "📚", 0)
	id, err := s.AddLink(ctx, NewLink{Name: "Go", URL: "https://go.dev"})
	if err != nil {
		t.Fatalf("AddLink: %v", err)
	}

	if err := s.ModerateLink(ctx, id, StatusApproved, nil, &cat); err != nil {
		t.Fatalf("ModerateLink: %v", err)
	}
	if err := s.ModerateLink(ctx, id, StatusRejected, ptr("late"), nil); !errors.Is(err, ErrModerated) {
		t.Fatalf("second decision = %v, want ErrModerated", err)
	}
	if err := s.ModerateLink(ctx, 999, StatusApproved, nil, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing link = %v, want ErrNotFound", err)
	}
	if err := s.ModerateLink(ctx, id, StatusPending, nil, nil); err == nil {
		t.Fatalf("pending is not a decision")
	}

	l, _ := s.GetLink(ctx, id)
	if l.Status != StatusApproved || l.CategoryID == nil || *l.CategoryID != cat || l.ModeratedAt == nil {
		t.Fatalf("link = %+v", l)
	}
}

func TestUpdateLink(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	cat, _ := s.AddCategory(ctx, "Docs", "📚", 0)
	id, _ := s.AddLink(ctx, NewLink{CategoryID: &cat, Name: "Go", URL: "https://go.dev", Description: ptr("old")})

	if err := s.UpdateLink(ctx, id, LinkEdit{Name: ptr("Go home"), Description: ptr(""), CategoryID: ptr(int64(0))}); err != nil {
		t.Fatalf("UpdateLink: %v", err)
	}
	l, _ := s.GetLink(ctx, id)
	if l.Name != "Go home" || l.URL != "https://go.dev" || l.Description != nil || l.CategoryID != nil {
		t.Fatalf("link = %+v", l)
	}

	if err := s.UpdateLink(ctx, id, LinkEdit{CategoryID: ptr(int64(404))}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown category = %v, want ErrNotFound", err)
	}
	if err := s.UpdateLink(ctx, 999, LinkEdit{Name: ptr("x")}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing link = %v, want ErrNotFound", err)
	}
	if err := s.UpdateLink(ctx, 999, LinkEdit{}); err != nil {
		t.Fatalf("empty edit = %v", err)
	}
}

func TestListLinks(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	a, _ := s.AddLink(ctx, NewLink{Name: "a", URL: "https://a.org", Status: StatusApproved})
	b, _ := s.AddLink(ctx, NewLink{Name: "b", URL: "https://b.org"})
	c, _ := s.AddLink(ctx, NewLink{Name: "c", URL: "https://c.org", Status: StatusApproved})

	cases := []struct {
		status Status
		limit  int
		want   []int64
	}{
		{"", 0, []int64{c, b, a}},
		{"", 2, []int64{c, b}},
		{StatusApproved, 10, []int64{c, a}},
		{StatusRejected, 10, nil},
	}
	for _, tc := range cases {
		got, err := s.ListLinks(ctx, tc.status, tc.limit)
		if err != nil {
			t.Fatalf("ListLinks(%q): %v", tc.status, err)
		}
		var ids []int64
		for _, l := range got {
			ids = append(ids, l.ID)
		}
		if !slices.Equal(ids, tc.want) {
			t.Fatalf("ListLinks(%q, %d) = %v, want %v", tc.status, tc.limit, ids, tc.want)
		}
	}
}

func TestReactions(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	id, _ := s.AddLink(ctx, NewLink{Name: "Go", URL: "https://go.dev", Status: StatusApproved})

	steps := []struct {
		user     int64
		reaction string
		wantSet  bool
	}{
		{1, "👍", true},
		{2, "👍", true},
		{1, "🔥", true},
		{2, "👍", false},
	}
	for _, st := range steps {
		set, err := s.React(ctx, id, st.user, st.reaction)
		if err != nil || set != st.wantSet {
			t.Fatalf("React(%d, %s) = %v, %v, want %v", st.user, st.reaction, set, err, st.wantSet)
		}
	}

	counts, err := s.ReactionCounts(ctx, id)
	if err != nil {
		t.Fatalf("ReactionCounts: %v", err)
	}
	if len(counts) != 1 || counts["🔥"] != 1 {
		t.Fatalf("counts = %v", counts)
	}
	if r, _ := s.UserReaction(ctx, id, 1); r != "🔥" {
		t.Fatalf("user 1 reaction = %q", r)
	}
	if r, err := s.UserReaction(ctx, id, 2); r != "" || err != nil {
		t.Fatalf("user 2 reaction = %q, %v", r, err)
	}
	if st, _ := s.Stats(ctx); st.Reactions != 1 {
		t.Fatalf("stats reactions = %d", st.Reactions)
	}

	if _, err := s.React(ctx, id, 1, "💩"); err == nil {
		t.Fatalf("unknown reaction accepted")
	}
	if _, err := s.React(ctx, 999, 1, "👍"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("reaction on missing link = %v, want ErrNotFound", err)
	}

	if err := s.DeleteLink(ctx, id); err != nil {
		t.Fatalf("DeleteLink: %v", err)
	}
	if st, _ := s.Stats(ctx); st.Reactions != 0 {
		t.Fatalf("reactions survived link deletion: %d", st.Reactions)
	}
}
