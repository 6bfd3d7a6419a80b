package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Reactions are the emoji a user can leave on a link, in display order.
var Reactions = []string{"👍", "👎", "🔥", "❤️"}

func ValidReaction(r string) bool { return slices.Contains(Reactions, r) }

// React sets userID's single reaction on a link. Sending the current reaction
// again takes it back. The result reports whether a reaction is set now.
func (s *Store) React(ctx context.Context, linkID, userID int64, reaction string) (bool, error) {
	if !ValidReaction(reaction) {
		return false, fmt.Errorf("catalog: invalid reaction %q", reaction)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var cur string
	err = tx.GetContext(ctx, &cur, `SELECT reaction FROM reactions WHERE link_id = ? AND user_id = ?`, linkID, userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return false, err
	case cur == reaction:
		if _, err := tx.ExecContext(ctx, `DELETE FROM reactions WHERE link_id = ? AND user_id = ?`, linkID, userID); err != nil {
			return false, err
		}
		return false, tx.Commit()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reactions(link_id, user_id, reaction, created_at) VALUES(?,?,?,?)
		ON CONFLICT(link_id, user_id) DO UPDATE SET reaction = excluded.reaction, created_at = excluded.created_at`,
		linkID, userID, reaction, Now())
	if err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// UserReaction returns userID's reaction on a link, "" when there is none.
func (s *Store) UserReaction(ctx context.Context, linkID, userID int64) (string, error) {
	var r string
	err := s.db.GetContext(ctx, &r, `SELECT reaction FROM reactions WHERE link_id = ? AND user_id = ?`, linkID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return r, err
}

// ReactionCounts maps each reaction present on a link to its count.
func (s *Store) ReactionCounts(ctx context.Context, linkID int64) (map[string]int, error) {
	var rows []struct {
		Reaction string `db:"reaction"`
		N        int    `db:"n"`
	}
	err := s.db.SelectContext(ctx, &rows,
		`SELECT reaction, COUNT(*) AS n FROM reactions WHERE link_id = ? GROUP BY reaction`, linkID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Reaction] = r.N
	}
	return out, nil
}
