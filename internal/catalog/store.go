// Package catalog persists users, categories, links and the moderation audit
// trail in SQLite.
package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	logx "linkbot/pkg/logx"
)

//go:embed migrations.sql
var migrations string

type Config struct {
	// Path is the database file. ":memory:" keeps everything in process.
	Path        string
	BusyTimeout time.Duration
}

type Store struct {
	db  *sqlx.DB
	log logx.Logger
}

// Open opens (creating if needed) the database and applies the schema.
func Open(ctx context.Context, cfg Config, log logx.Logger) (*Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("catalog: sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	db, err := sqlx.Open("sqlite", dsn(path, cfg.BusyTimeout))
	if err != nil {
		return nil, err
	}
	// One writer; also keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, log: log}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// dsn sets per-connection pragmas through the driver's _pragma parameters.
func dsn(path string, busy time.Duration) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	q.Add("_pragma", "foreign_keys(1)")
	if path != ":memory:" {
		q.Add("_pragma", "journal_mode(WAL)")
		q.Add("_pragma", "synchronous(NORMAL)")
	}
	return "file:" + path + "?" + q.Encode()
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, migrations); err != nil {
		return fmt.Errorf("catalog: migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping is used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func isUnique(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullStr(v *string) any {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	return *v
}

// --- users ---

// UpsertUser inserts the user or refreshes username and first name. The role
// of an existing user is kept.
func (s *Store) UpsertUser(ctx context.Context, id int64, username, firstName, role string) error {
	if role == "" {
		role = "user"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users(user_id, username, first_name, role, created_at) VALUES(?,?,?,?,?)
		ON CONFLICT(user_id) DO UPDATE SET username = excluded.username, first_name = excluded.first_name`,
		id, nullStr(&username), nullStr(&firstName), role, Now(),
	)
	return err
}

func (s *Store) GetUser(ctx context.Context, id int64) (User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, `SELECT user_id, username, first_name, role, created_at FROM users WHERE user_id = ?`, id)
	return u, notFound(err)
}

// --- categories ---

func (s *Store) AddCategory(ctx context.Context, name, emoji string, position int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO categories(name, emoji, position) VALUES(?,?,?)`, name, emoji, position)
	if isUnique(err) {
		return 0, fmt.Errorf("category %q: %w", name, ErrDuplicate)
	}
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListCategories orders by position then id. Links holds the approved link count.
func (s *Store) ListCategories(ctx context.Context, onlyActive bool) ([]Category, error) {
	out := []Category{}
	err := s.db.SelectContext(ctx, &out, `
		SELECT c.id, c.name, c.emoji, c.position, c.is_active,
		       (SELECT COUNT(*) FROM links l WHERE l.category_id = c.id AND l.status = 'approved') AS links_count
		FROM categories c
		WHERE (? = 0 OR c.is_active = 1)
		ORDER BY c.position, c.id`, onlyActive)
	return out, err
}

func (s *Store) GetCategory(ctx context.Context, id int64) (Category, error) {
	var c Category
	err := s.db.GetContext(ctx, &c, `
		SELECT id, name, emoji, position, is_active, 0 AS links_count FROM categories WHERE id = ?`, id)
	return c, notFound(err)
}

func (s *Store) UpdateCategory(ctx context.Context, id int64, name, emoji *string) error {
	sets, args := []string{}, []any{}
	if name != nil {
		sets, args = append(sets, "name = ?"), append(args, *name)
	}
	if emoji != nil {
		sets, args = append(sets, "emoji = ?"), append(args, *emoji)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := s.db.ExecContext(ctx, `UPDATE categories SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if isUnique(err) {
		return ErrDuplicate
	}
	return affected(res, err)
}

// ToggleCategory flips is_active and returns the new value.
func (s *Store) ToggleCategory(ctx context.Context, id int64) (bool, error) {
	var active bool
	err := s.db.GetContext(ctx, &active,
		`UPDATE categories SET is_active = 1 - is_active WHERE id = ? RETURNING is_active`, id)
	return active, notFound(err)
}

// DeleteCategory removes the category; its links become uncategorized.
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	return affected(res, err)
}

// --- links ---

const linkColumns = `
	l.id, l.category_id, l.user_id, l.name, l.url, l.description, l.status,
	l.rejection_reason, l.clicks_count, l.created_at, l.moderated_at,
	COALESCE(c.name, '') AS category_name, COALESCE(c.emoji, '') AS category_emoji,
	COALESCE(u.username, '') AS author_username, COALESCE(u.first_name, '') AS author_name
	FROM links l
	LEFT JOIN categories c ON c.id = l.category_id
	LEFT JOIN users u ON u.user_id = l.user_id`

func (s *Store) AddLink(ctx context.Context, l NewLink) (int64, error) {
	if l.Status == "" {
		l.Status = StatusPending
	}
	if !l.Status.Valid() {
		return 0, fmt.Errorf("catalog: invalid status %q", l.Status)
	}
	var moderated any
	if l.Status != StatusPending {
		moderated = Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO links(category_id, user_id, name, url, description, status, created_at, moderated_at)
		VALUES(?,?,?,?,?,?,?,?)`,
		l.CategoryID, l.UserID, l.Name, l.URL, nullStr(l.Description), l.Status, Now(), moderated,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) GetLink(ctx context.Context, id int64) (Link, error) {
	var l Link
	err := s.db.GetContext(ctx, &l, `SELECT `+linkColumns+` WHERE l.id = ?`, id)
	return l, notFound(err)
}

// ListLinksByCategory returns newest first.
func (s *Store) ListLinksByCategory(ctx context.Context, categoryID int64, status Status) ([]Link, error) {
	out := []Link{}
	err := s.db.SelectContext(ctx, &out,
		`SELECT `+linkColumns+` WHERE l.category_id = ? AND l.status = ? ORDER BY l.created_at DESC, l.id DESC`,
		categoryID, status)
	return out, err
}

func (s *Store) ListUserLinks(ctx context.Context, userID int64) ([]Link, error) {
	out := []Link{}
	err := s.db.SelectContext(ctx, &out,
		`SELECT `+linkColumns+` WHERE l.user_id = ? ORDER BY l.created_at DESC, l.id DESC`, userID)
	return out, err
}

// ListPendingLinks returns the moderation queue, oldest first. limit <= 0
// returns everything.
func (s *Store) ListPendingLinks(ctx context.Context, limit int) ([]Link, error) {
	if limit <= 0 {
		limit = -1
	}
	out := []Link{}
	err := s.db.SelectContext(ctx, &out,
		`SELECT `+linkColumns+` WHERE l.status = 'pending' ORDER BY l.created_at, l.id LIMIT ?`, limit)
	return out, err
}

// SetLinkStatus moderates a link. A non-nil categoryID also reassigns it.
func (s *Store) SetLinkStatus(ctx context.Context, id int64, status Status, reason *string, categoryID *int64) error {
	if !status.Valid() {
		return fmt.Errorf("catalog: invalid status %q", status)
	}
	var moderated any
	if status != StatusPending {
		moderated = Now()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE links SET status = ?, rejection_reason = ?, moderated_at = ?,
		       category_id = COALESCE(?, category_id)
		WHERE id = ?`,
		status, nullStr(reason), moderated, categoryID, id)
	return affected(res, err)
}

// ModerateLink moves a pending link to status. It returns ErrModerated when
// the link was already decided, so two moderators cannot both act on it.
func (s *Store) ModerateLink(ctx context.Context, id int64, status Status, reason *string, categoryID *int64) error {
	if status == StatusPending || !status.Valid() {
		return fmt.Errorf("catalog: invalid moderation status %q", status)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE links SET status = ?, rejection_reason = ?, moderated_at = ?,
		       category_id = COALESCE(?, category_id)
		WHERE id = ? AND status = 'pending'`,
		status, nullStr(reason), Now(), categoryID, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}
	if _, err := s.GetLink(ctx, id); err != nil {
		return err
	}
	return ErrModerated
}

// UpdateLink edits the non-nil fields of e. A blank description clears it and
// category 0 makes the link undecided.
func (s *Store) UpdateLink(ctx context.Context, id int64, e LinkEdit) error {
	sets, args := []string{}, []any{}
	if e.Name != nil {
		sets, args = append(sets, "name = ?"), append(args, *e.Name)
	}
	if e.URL != nil {
		sets, args = append(sets, "url = ?"), append(args, *e.URL)
	}
	if e.Description != nil {
		sets, args = append(sets, "description = ?"), append(args, nullStr(e.Description))
	}
	if e.CategoryID != nil {
		var cat any
		if *e.CategoryID != 0 {
			cat = *e.CategoryID
		}
		sets, args = append(sets, "category_id = ?"), append(args, cat)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := s.db.ExecContext(ctx, `UPDATE links SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil && e.CategoryID != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
		return fmt.Errorf("category %d: %w", *e.CategoryID, ErrNotFound)
	}
	return affected(res, err)
}

// ListLinks returns links of any category, newest first. An empty status
// matches every status; limit <= 0 returns everything.
func (s *Store) ListLinks(ctx context.Context, status Status, limit int) ([]Link, error) {
	if limit <= 0 {
		limit = -1
	}
	out := []Link{}
	err := s.db.SelectContext(ctx, &out,
		`SELECT `+linkColumns+` WHERE (? = '' OR l.status = ?) ORDER BY l.created_at DESC, l.id DESC LIMIT ?`,
		status, status, limit)
	return out, err
}

func (s *Store) DeleteLink(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM links WHERE id = ?`, id)
	return affected(res, err)
}

// IncrementClicks records a click by userID (nil for anonymous) and bumps the
// link's counter in one transaction.
func (s *Store) IncrementClicks(ctx context.Context, linkID int64, userID *int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE links SET clicks_count = clicks_count + 1 WHERE id = ?`, linkID)
	if err := affected(res, err); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO clicks(link_id, user_id, clicked_at) VALUES(?,?,?)`, linkID, userID, Now()); err != nil {
		return err
	}
	return tx.Commit()
}

// --- stats ---

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.GetContext(ctx, &st, `
		SELECT
			(SELECT COUNT(*) FROM users) AS users,
			(SELECT COUNT(*) FROM categories WHERE is_active = 1) AS categories,
			(SELECT COUNT(*) FROM links WHERE status = 'approved') AS approved,
			(SELECT COUNT(*) FROM links WHERE status = 'pending') AS pending,
			(SELECT COUNT(*) FROM links WHERE status = 'rejected') AS rejected,
			(SELECT COUNT(*) FROM clicks) AS clicks,
			(SELECT COUNT(*) FROM reactions) AS reactions`)
	return st, err
}

// TopLinks returns approved links by click count.
func (s *Store) TopLinks(ctx context.Context, limit int) ([]Link, error) {
	if limit <= 0 {
		limit = 10
	}
	out := []Link{}
	err := s.db.SelectContext(ctx, &out,
		`SELECT `+linkColumns+` WHERE l.status = 'approved' ORDER BY l.clicks_count DESC, l.id LIMIT ?`, limit)
	return out, err
}

// --- audit ---

func (s *Store) AppendAudit(ctx context.Context, e AuditEntry) error {
	if e.ID == "" {
		e.ID = newID()
	}
	if e.At.IsZero() {
		e.At = Now()
	}
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO audit(id, at, actor_id, action, target, meta) VALUES(:id, :at, :actor_id, :action, :target, :meta)`, e)
	return err
}

// RecentAudit returns the newest entries first.
func (s *Store) RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	out := []AuditEntry{}
	err := s.db.SelectContext(ctx, &out,
		`SELECT id, at, actor_id, action, target, meta FROM audit ORDER BY at DESC, rowid DESC LIMIT ?`, limit)
	return out, err
}
