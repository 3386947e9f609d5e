package model

// MapStatus mirrors maps.status.
type MapStatus int

// Beatmap statuses that count towards profile ratings are Ranked and Approved.
const (
	MapNotSubmitted MapStatus = -1
	MapPending      MapStatus = 0
	MapUpdateAvail  MapStatus = 1
	MapRanked       MapStatus = 2
	MapApproved     MapStatus = 3
	MapQualified    MapStatus = 4
	MapLoved        MapStatus = 5
)

// Beatmap is a row of the maps table.
type Beatmap struct {
	ID          int64
	SetID       int64
	MD5         string
	Title       string
	Artist      string
	Creator     string
	TotalLength int
	Status      MapStatus
	CS          float64
}

// Meta returns the metadata used by the nerf policy.
func (b *Beatmap) Meta() MapMeta {
	return MapMeta{
		Title:   b.Title,
		Artist:  b.Artist,
		Creator: b.Creator,
		SetID:   b.SetID,
	}
}

// MapMeta is the subset of beatmap metadata the nerf policy consults.
type MapMeta struct {
	Title   string
	Artist  string
	Creator string
	SetID   int64
}

// Complete reports whether all fields needed for a policy lookup are present.
func (m *MapMeta) Complete() bool {
	return m != nil && m.Title != "" && m.Artist != "" && m.Creator != ""
}
