package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/tuyosu/pprating/internal/domain/model"
)

// BeatmapByID looks a beatmap up by its id.
func (s *Store) BeatmapByID(ctx context.Context, id int64) (model.Beatmap, bool, error) {
	var (
		bm     model.Beatmap
		status int
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
SELECT id, set_id, md5, title, artist, creator, total_length, status, cs
FROM maps WHERE id = ?`), id).Scan(
		&bm.ID, &bm.SetID, &bm.MD5, &bm.Title, &bm.Artist, &bm.Creator, &bm.TotalLength, &status, &bm.CS,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Beatmap{}, false, nil
	}
	if err != nil {
		return model.Beatmap{}, false, fail("load beatmap", err)
	}
	bm.Status = model.MapStatus(status)
	return bm, true, nil
}
