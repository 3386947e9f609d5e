package recalc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// scoreChangeRow is the parquet schema of the score change log.
type scoreChangeRow struct {
	RunID   string  `parquet:"run_id,snappy,dict"`
	ScoreID int64   `parquet:"score_id,snappy"`
	UserID  int64   `parquet:"user_id,snappy"`
	Map     string  `parquet:"map,snappy"`
	Mode    int32   `parquet:"mode,snappy"`
	Mods    int64   `parquet:"mods,snappy"`
	Relax   bool    `parquet:"relax,snappy"`
	OldPP   float64 `parquet:"old_pp,snappy"`
	NewPP   float64 `parquet:"new_pp,snappy"`
	Change  float64 `parquet:"change,snappy"`
}

// ParquetFileName returns the export name matching LogFileName.
func (r *Report) ParquetFileName() string {
	return strings.TrimSuffix(r.LogFileName(), ".log") + ".scores.parquet"
}

// WriteParquet writes the score change log into dir and returns the path.
func (r *Report) WriteParquet(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, r.ParquetFileName())
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create parquet file: %w", err)
	}

	rows := make([]scoreChangeRow, len(r.ScoreChanges))
	for i, c := range r.ScoreChanges {
		rows[i] = scoreChangeRow{
			RunID:   r.RunID.String(),
			ScoreID: c.ScoreID,
			UserID:  c.UserID,
			Map:     c.Map,
			Mode:    int32(c.Mode),
			Mods:    int64(c.Mods),
			Relax:   c.Relax,
			OldPP:   c.OldPP,
			NewPP:   c.NewPP,
			Change:  c.Change,
		}
	}

	w := parquet.NewGenericWriter[scoreChangeRow](f)
	if _, err := w.Write(rows); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write parquet rows: %w", err)
	}
	if err := w.Close(); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("close parquet writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close parquet file: %w", err)
	}
	return path, nil
}
