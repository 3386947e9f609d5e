package storage

import (
	"context"

	"github.com/tuyosu/pprating/internal/domain/model"
	"github.com/tuyosu/pprating/internal/domain/mods"
)

const scoresForRecalcQuery = `
SELECT s.id, s.userid, s.map_md5, s.mode, s.mods, s.pp, s.acc, s.max_combo,
       s.n300, s.n100, s.n50, s.ngeki, s.nkatu, s.nmiss, s.status,
       m.id, m.set_id, m.title, m.artist, m.creator, m.total_length, m.status, m.cs
FROM scores s
INNER JOIN maps m ON s.map_md5 = m.md5
WHERE s.status = 2 AND s.mode = ?
ORDER BY s.pp DESC, s.id ASC`

// ScoresForRecalc returns every best score of mode joined with its beatmap,
// highest stored rating first.
func (s *Store) ScoresForRecalc(ctx context.Context, mode mods.Mode) ([]model.ScoreWithMap, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(scoresForRecalcQuery), int(mode))
	if err != nil {
		return nil, fail("load scores", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.ScoreWithMap
	for rows.Next() {
		var (
			sc           model.ScoreWithMap
			mode, status int
			mapStatus    int
			modsRaw      int64
		)
		if err := rows.Scan(
			&sc.ID, &sc.UserID, &sc.MapMD5, &mode, &modsRaw, &sc.PP, &sc.Acc, &sc.MaxCombo,
			&sc.N300, &sc.N100, &sc.N50, &sc.NGeki, &sc.NKatu, &sc.NMiss, &status,
			&sc.Map.ID, &sc.Map.SetID, &sc.Map.Title, &sc.Map.Artist, &sc.Map.Creator,
			&sc.Map.TotalLength, &mapStatus, &sc.Map.CS,
		); err != nil {
			return nil, fail("scan score", err)
		}
		sc.Mode = mods.Mode(mode)
		sc.Mods = mods.Mods(modsRaw)
		sc.Status = model.ScoreStatus(status)
		sc.Map.MD5 = sc.MapMD5
		sc.Map.Status = model.MapStatus(mapStatus)
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("iterate scores", err)
	}
	return out, nil
}

// UpdateScorePP overwrites the stored rating of one score.
func (s *Store) UpdateScorePP(ctx context.Context, scoreID int64, pp float64) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`UPDATE scores SET pp = ? WHERE id = ?`), pp, scoreID); err != nil {
		return fail("update score", err)
	}
	return nil
}

const bestScoresQuery = `
SELECT s.pp, s.acc
FROM scores s
INNER JOIN maps m ON s.map_md5 = m.md5
WHERE s.userid = ? AND s.mode = ? AND s.status = 2 AND m.status IN (2, 3)
ORDER BY s.pp DESC`

// BestScores returns the (pp, acc) pairs of a player's best scores on ranked
// and approved maps, highest first.
func (s *Store) BestScores(ctx context.Context, userID int64, mode mods.Mode) ([]model.BestScore, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(bestScoresQuery), userID, int(mode))
	if err != nil {
		return nil, fail("load best scores", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.BestScore
	for rows.Next() {
		var b model.BestScore
		if err := rows.Scan(&b.PP, &b.Acc); err != nil {
			return nil, fail("scan best score", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("iterate best scores", err)
	}
	return out, nil
}
