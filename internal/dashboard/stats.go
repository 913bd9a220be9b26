package dashboard

import "context"

// DefaultLeaderboardSize caps the track and artist leaderboards.
const DefaultLeaderboardSize = 10

// Stats bundles every dashboard rollup for one filtered window.
type Stats struct {
	Summary            Summary         `json:"summary"`
	TopTracks          []TrackCount    `json:"top_tracks"`
	TopArtists         []ArtistMinutes `json:"top_artists"`
	MinutesByDayOfWeek []BucketMinutes `json:"minutes_by_day_of_week"`
	MinutesByHourOfDay []BucketMinutes `json:"minutes_by_hour_of_day"`
	Heatmap            []HeatmapCell   `json:"heatmap,omitempty"`
}

// Stats computes all rollups for the filter. The heatmap is only populated
// when the filter names a year, since it spans one calendar year.
func (r *Reader) Stats(ctx context.Context, f Filter) (Stats, error) {
	var (
		s   Stats
		err error
	)

	if s.Summary, err = r.Summary(ctx, f); err != nil {
		return Stats{}, err
	}
	if s.TopTracks, err = r.TopTracks(ctx, f, DefaultLeaderboardSize); err != nil {
		return Stats{}, err
	}
	if s.TopArtists, err = r.TopArtists(ctx, f, DefaultLeaderboardSize); err != nil {
		return Stats{}, err
	}
	if s.MinutesByDayOfWeek, err = r.MinutesByDayOfWeek(ctx, f); err != nil {
		return Stats{}, err
	}
	if s.MinutesByHourOfDay, err = r.MinutesByHourOfDay(ctx, f); err != nil {
		return Stats{}, err
	}
	if f.Year != "" {
		if s.Heatmap, err = r.Heatmap(ctx, f.Year); err != nil {
			return Stats{}, err
		}
	}
	return s, nil
}
