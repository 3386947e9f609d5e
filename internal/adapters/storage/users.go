package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tuyosu/pprating/internal/config"
	"github.com/tuyosu/pprating/internal/domain/model"
	"github.com/tuyosu/pprating/internal/domain/mods"
)

// UserIDs returns every user id.
func (s *Store) UserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fail("load users", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fail("scan user", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("iterate users", err)
	}
	return ids, nil
}

// User returns the country and privileges of a user.
func (s *Store) User(ctx context.Context, id int64) (model.User, bool, error) {
	u := model.User{ID: id}
	var priv int64
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT country, priv FROM users WHERE id = ?`), id).Scan(&u.Country, &priv)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, false, nil
	}
	if err != nil {
		return model.User{}, false, fail("load user", err)
	}
	u.Priv = model.Privileges(priv)
	return u, true, nil
}

// UpsertStats writes a player aggregate. New rows get zeroed volume counters;
// existing rows only have pp, acc and plays replaced.
func (s *Store) UpsertStats(ctx context.Context, st model.AggregateStats) error {
	if _, err := s.db.ExecContext(ctx, s.upsertStatsQuery(), st.UserID, int(st.Mode), st.PP, st.Acc, st.Plays); err != nil {
		return fail("upsert stats", err)
	}
	return nil
}

func (s *Store) upsertStatsQuery() string {
	const insert = `INSERT INTO stats (id, mode, pp, acc, plays, tscore, rscore, playtime, max_combo, total_hits, xh_count, x_count, sh_count, s_count, a_count)
VALUES (?, ?, ?, ?, ?, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0)`
	switch s.backend {
	case config.BackendMySQL:
		return insert + ` ON DUPLICATE KEY UPDATE pp = VALUES(pp), acc = VALUES(acc), plays = VALUES(plays)`
	default:
		return s.rebind(insert + ` ON CONFLICT (id, mode) DO UPDATE SET pp = EXCLUDED.pp, acc = EXCLUDED.acc, plays = EXCLUDED.plays`)
	}
}

// Stats reads one aggregate row.
func (s *Store) Stats(ctx context.Context, userID int64, mode mods.Mode) (model.AggregateStats, bool, error) {
	st := model.AggregateStats{UserID: userID}
	var m int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT mode, pp, acc, plays FROM stats WHERE id = ? AND mode = ?`), userID, int(mode)).
		Scan(&m, &st.PP, &st.Acc, &st.Plays)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AggregateStats{}, false, nil
	}
	if err != nil {
		return model.AggregateStats{}, false, fail("load stats", err)
	}
	st.Mode = mods.Mode(m)
	return st, true, nil
}

const leaderboardBase = `
FROM stats s
INNER JOIN users u ON s.id = u.id
WHERE s.mode = ? AND (u.priv & 1) <> 0`

// LeaderboardPage returns one page of the stats leaderboard, optionally
// restricted to a country. Ranks are positions in the full filtered board.
func (s *Store) LeaderboardPage(ctx context.Context, mode mods.Mode, country string, limit, offset int) ([]model.LeaderboardRow, error) {
	args := []any{int(mode)}
	where := leaderboardBase
	if country != "" {
		where += ` AND u.country = ?`
		args = append(args, country)
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
SELECT u.id, u.name, u.country, s.pp, s.acc, s.plays, s.playtime, s.max_combo, s.total_hits,
       s.xh_count, s.x_count, s.sh_count, s.s_count, s.a_count,
       ROW_NUMBER() OVER (ORDER BY s.pp DESC, s.id ASC) AS pos
%s
ORDER BY s.pp DESC, s.id ASC
LIMIT ? OFFSET ?`, where)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fail("load leaderboard", err)
	}
	defer func() { _ = rows.Close() }()

	out := []model.LeaderboardRow{}
	for rows.Next() {
		var r model.LeaderboardRow
		if err := rows.Scan(
			&r.UserID, &r.PlayerName, &r.Country, &r.PP, &r.Acc, &r.Plays, &r.Playtime, &r.MaxCombo, &r.TotalHits,
			&r.XHCount, &r.XCount, &r.SHCount, &r.SCount, &r.ACount, &r.Rank,
		); err != nil {
			return nil, fail("scan leaderboard", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("iterate leaderboard", err)
	}
	return out, nil
}

// LeaderboardCount returns the number of rows LeaderboardPage pages over.
func (s *Store) LeaderboardCount(ctx context.Context, mode mods.Mode, country string) (int, error) {
	args := []any{int(mode)}
	query := `SELECT COUNT(*)` + leaderboardBase
	if country != "" {
		query += ` AND u.country = ?`
		args = append(args, country)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, s.rebind(query), args...).Scan(&n); err != nil {
		return 0, fail("count leaderboard", err)
	}
	return n, nil
}
