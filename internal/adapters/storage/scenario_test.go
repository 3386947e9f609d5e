package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuyosu/pprating/internal/domain/model"
	"github.com/tuyosu/pprating/internal/domain/mods"
)

func mustExec(t *testing.T, s *Store, query string, args ...any) {
	t.Helper()
	_, err := s.db.ExecContext(context.Background(), s.rebind(query), args...)
	require.NoError(t, err, query)
}

// seed writes a small bancho-shaped fixture.
func seed(t *testing.T, s *Store) {
	t.Helper()
	for _, u := range []struct {
		id      int64
		name    string
		country string
		priv    int
	}{
		{1, "cookiezi", "de", 1},
		{2, "restricted", "us", 0},
		{3, "mrekk", "de", 1 | 8},
	} {
		mustExec(t, s, `INSERT INTO users (id, name, country, priv) VALUES (?, ?, ?, ?)`, u.id, u.name, u.country, u.priv)
	}

	mustExec(t, s, `INSERT INTO maps (id, set_id, md5, artist, title, version, creator, total_length, status, cs)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, 100, 10, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "xi", "Blue Zenith", "FOUR DIMENSIONS", "Asphyxia", 270, 2, 4.0)
	mustExec(t, s, `INSERT INTO maps (id, set_id, md5, artist, title, version, creator, total_length, status, cs)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, 101, 11, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "Camellia", "Exit This Earth", "Apocalypse", "hool", 180, 5, 4.2)

	for _, sc := range []struct {
		id     int64
		user   int64
		md5    string
		mode   int
		status int
		pp     float64
	}{
		{1, 1, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", 0, 2, 200},
		{2, 1, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", 0, 2, 300},
		{3, 1, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", 0, 1, 999},
		{4, 3, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", 4, 2, 50},
	} {
		mustExec(t, s, `INSERT INTO scores (id, map_md5, userid, mode, mods, pp, acc, max_combo, n300, n100, n50, ngeki, nkatu, nmiss, status, play_time)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sc.id, sc.md5, sc.user, sc.mode, 72, sc.pp, 98.5, 1200, 900, 20, 1, 150, 10, 2, sc.status, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	}
}

// exerciseStore runs the same assertions against every backend.
func exerciseStore(t *testing.T, s *Store) {
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx), "second migrate must be a no-op")
	seed(t, s)

	t.Run("scores for recalc", func(t *testing.T) {
		scores, err := s.ScoresForRecalc(ctx, mods.VanillaOsu)
		require.NoError(t, err)
		require.Len(t, scores, 2)
		assert.Equal(t, int64(2), scores[0].ID)
		assert.Equal(t, int64(1), scores[1].ID)

		sc := scores[1]
		assert.Equal(t, mods.Hidden|mods.DoubleTime, sc.Mods)
		assert.Equal(t, 1200, sc.MaxCombo)
		assert.Equal(t, 900, sc.N300)
		assert.Equal(t, 2, sc.NMiss)
		assert.Equal(t, model.ScoreBest, sc.Status)
		assert.Equal(t, int64(100), sc.Map.ID)
		assert.Equal(t, int64(10), sc.Map.SetID)
		assert.Equal(t, "Asphyxia", sc.Map.Creator)
		assert.Equal(t, 270, sc.Map.TotalLength)
		assert.Equal(t, model.MapRanked, sc.Map.Status)
		assert.InDelta(t, 4.0, sc.Map.CS, 1e-6)
		assert.Equal(t, "xi - Blue Zenith [Asphyxia]", sc.MapLabel())
	})

	t.Run("update score pp", func(t *testing.T) {
		require.NoError(t, s.UpdateScorePP(ctx, 1, 350.125))
		scores, err := s.ScoresForRecalc(ctx, mods.VanillaOsu)
		require.NoError(t, err)
		assert.Equal(t, int64(1), scores[0].ID)
		assert.InDelta(t, 350.125, scores[0].PP, 1e-9)
	})

	t.Run("best scores only count ranked and approved maps", func(t *testing.T) {
		best, err := s.BestScores(ctx, 1, mods.VanillaOsu)
		require.NoError(t, err)
		require.Len(t, best, 1)
		assert.InDelta(t, 350.125, best[0].PP, 1e-9)
		assert.InDelta(t, 98.5, best[0].Acc, 1e-9)
	})

	t.Run("users", func(t *testing.T) {
		ids, err := s.UserIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 3}, ids)

		u, ok, err := s.User(ctx, 3)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "de", u.Country)
		assert.True(t, u.Visible())

		_, ok, err = s.User(ctx, 99)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("upsert stats overwrites", func(t *testing.T) {
		require.NoError(t, s.UpsertStats(ctx, model.AggregateStats{UserID: 1, Mode: mods.VanillaOsu, PP: 100, Acc: 90, Plays: 1}))
		require.NoError(t, s.UpsertStats(ctx, model.AggregateStats{UserID: 1, Mode: mods.VanillaOsu, PP: 1000, Acc: 98.25, Plays: 2}))

		st, ok, err := s.Stats(ctx, 1, mods.VanillaOsu)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 1000, st.PP)
		assert.InDelta(t, 98.25, st.Acc, 1e-9)
		assert.Equal(t, 2, st.Plays)

		var rows int
		require.NoError(t, s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM stats WHERE id = ?`), 1).Scan(&rows))
		assert.Equal(t, 1, rows)

		_, ok, err = s.Stats(ctx, 1, mods.RelaxOsu)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("leaderboard pages skip restricted players", func(t *testing.T) {
		require.NoError(t, s.UpsertStats(ctx, model.AggregateStats{UserID: 2, Mode: mods.VanillaOsu, PP: 5000, Acc: 99, Plays: 9}))
		require.NoError(t, s.UpsertStats(ctx, model.AggregateStats{UserID: 3, Mode: mods.VanillaOsu, PP: 2000, Acc: 97, Plays: 4}))

		rows, err := s.LeaderboardPage(ctx, mods.VanillaOsu, "", 10, 0)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, int64(3), rows[0].UserID)
		assert.Equal(t, 1, rows[0].Rank)
		assert.Equal(t, "mrekk", rows[0].PlayerName)
		assert.Equal(t, int64(1), rows[1].UserID)
		assert.Equal(t, 2, rows[1].Rank)

		page2, err := s.LeaderboardPage(ctx, mods.VanillaOsu, "de", 1, 1)
		require.NoError(t, err)
		require.Len(t, page2, 1)
		assert.Equal(t, int64(1), page2[0].UserID)
		assert.Equal(t, 2, page2[0].Rank)

		n, err := s.LeaderboardCount(ctx, mods.VanillaOsu, "")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		n, err = s.LeaderboardCount(ctx, mods.VanillaOsu, "us")
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		empty, err := s.LeaderboardPage(ctx, mods.VanillaOsu, "jp", 10, 0)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("beatmap by id", func(t *testing.T) {
		bm, ok, err := s.BeatmapByID(ctx, 101)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "hool", bm.Creator)
		assert.Equal(t, model.MapLoved, bm.Status)

		_, ok, err = s.BeatmapByID(ctx, 5)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("api keys", func(t *testing.T) {
		expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
		k, err := s.CreateAPIKey(ctx, model.APIKey{UserID: 1, Hash: "h1", Description: "bot", ExpiresAt: &expires})
		require.NoError(t, err)
		assert.Positive(t, k.ID)

		_, err = s.CreateAPIKey(ctx, model.APIKey{UserID: 1, Hash: "h2"})
		require.NoError(t, err)

		got, ok, err := s.APIKeyByHash(ctx, "h1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, k.ID, got.ID)
		assert.Equal(t, "bot", got.Description)
		assert.Nil(t, got.LastUsedAt)
		require.NotNil(t, got.ExpiresAt)
		assert.True(t, got.ExpiresAt.Equal(expires))
		assert.False(t, got.Revoked)

		used := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
		require.NoError(t, s.TouchAPIKey(ctx, "h1", used))
		got, _, err = s.APIKeyByHash(ctx, "h1")
		require.NoError(t, err)
		require.NotNil(t, got.LastUsedAt)
		assert.True(t, got.LastUsedAt.Equal(used))

		ok, err = s.RevokeAPIKey(ctx, k.ID, 2)
		require.NoError(t, err)
		assert.False(t, ok, "other users cannot revoke the key")

		ok, err = s.RevokeAPIKey(ctx, k.ID, 1)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = s.RevokeAPIKey(ctx, k.ID, 1)
		require.NoError(t, err)
		assert.True(t, ok, "revoking twice still finds the key")

		active, err := s.APIKeysByUser(ctx, 1, false)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "h2", active[0].Hash)

		all, err := s.APIKeysByUser(ctx, 1, true)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		_, ok, err = s.APIKeyByHash(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
