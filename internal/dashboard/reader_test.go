package dashboard

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/amolrairikar/spotify-listening-history-app/internal/faults"
)

func TestSourcePruning(t *testing.T) {
	r := &Reader{root: "/data/bucket"}

	tests := []struct {
		name   string
		filter Filter
		want   string
	}{
		{
			"all time",
			Filter{},
			"read_json('/data/bucket/processed/**/*.json', " + readColumns + ", hive_partitioning = 1)",
		},
		{
			"year only",
			Filter{Year: "2023"},
			"read_json('/data/bucket/processed/year=2023/**/*.json', " + readColumns + ", hive_partitioning = 1)",
		},
		{
			"year and month",
			Filter{Year: "2023", Month: "03"},
			"read_json('/data/bucket/processed/year=2023/month=03/*.json', " + readColumns + ", hive_partitioning = 1)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.source(tt.filter)
			if err != nil {
				t.Fatalf("source(%+v) error = %v", tt.filter, err)
			}
			if got != tt.want {
				t.Errorf("source(%+v) = %q, want %q", tt.filter, got, tt.want)
			}
		})
	}
}

func TestSourceRejectsInvalidFilters(t *testing.T) {
	r := &Reader{root: "/data/bucket"}

	tests := []struct {
		name   string
		filter Filter
	}{
		{"month without year", Filter{Month: "03"}},
		{"non-numeric year", Filter{Year: "20x3"}},
		{"year with quote", Filter{Year: "2023') --"}},
		{"month out of range", Filter{Year: "2023", Month: "13"}},
		{"month not zero padded", Filter{Year: "2023", Month: "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.source(tt.filter); faults.KindOf(err) != faults.KindValidation {
				t.Errorf("source(%+v) error = %v, want validation fault", tt.filter, err)
			}
		})
	}
}

func writePartition(t *testing.T, root, year, month, name, body string) {
	t.Helper()
	dir := filepath.Join(root, "processed", "year="+year, "month="+month)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("creating partition dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("writing partition file: %v", err)
	}
}

// fixtureReader builds a partition tree with three plays: two in March 2023
// (a Wednesday) and a repeat of the first track in April (a Saturday).
func fixtureReader(t *testing.T) *Reader {
	t.Helper()
	root := t.TempDir()

	writePartition(t, root, "2023", "03", "a.json", `[
		{"track_id": "spotify:track:1", "album": "Album One", "release_date": "2023-01-01",
		 "artists": ["Alpha"], "track_length": "03:30", "track_name": "First Track",
		 "track_url": "https://open.spotify.com/track/1", "track_popularity": 80,
		 "played_at": "2023-03-15T07:00:00"},
		{"track_id": "spotify:track:2", "album": "Album Two", "release_date": "2022-06-01",
		 "artists": ["Alpha", "Beta"], "track_length": "03:00", "track_name": "Second Track",
		 "track_url": "https://open.spotify.com/track/2", "track_popularity": 60,
		 "played_at": "2023-03-15T10:00:00"}
	]`)
	writePartition(t, root, "2023", "04", "b.json", `[
		{"track_id": "spotify:track:1", "album": "Album One", "release_date": "2023-01-01",
		 "artists": ["Alpha"], "track_length": "03:30", "track_name": "First Track",
		 "track_url": "https://open.spotify.com/track/1", "track_popularity": 80,
		 "played_at": "2023-04-01T20:00:00"}
	]`)

	r, err := NewReader(root)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestSummary(t *testing.T) {
	r := fixtureReader(t)

	got, err := r.Summary(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}

	want := Summary{TotalTracks: 3, DistinctArtists: 2, TotalMinutes: 10.0, MeanPopularity: 73.3}
	if got != want {
		t.Errorf("Summary() = %+v, want %+v", got, want)
	}
}

func TestSummaryMonthFilter(t *testing.T) {
	r := fixtureReader(t)

	got, err := r.Summary(context.Background(), Filter{Year: "2023", Month: "03"})
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if got.TotalTracks != 2 || got.TotalMinutes != 6.5 {
		t.Errorf("Summary() = %+v, want 2 tracks over 6.5 minutes", got)
	}
}

func TestSummaryEmptyTree(t *testing.T) {
	r, err := NewReader(t.TempDir())
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	defer r.Close()

	got, err := r.Summary(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if got != (Summary{}) {
		t.Errorf("Summary() = %+v, want zero values for empty tree", got)
	}
}

func TestEmptyPartitionWindow(t *testing.T) {
	r := fixtureReader(t)

	// A year with no partition directory renders as empty results, not an
	// error from the unmatched file glob.
	summary, err := r.Summary(context.Background(), Filter{Year: "2021"})
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if summary != (Summary{}) {
		t.Errorf("Summary() = %+v, want zero values", summary)
	}

	tracks, err := r.TopTracks(context.Background(), Filter{Year: "2023", Month: "05"}, 10)
	if err != nil {
		t.Fatalf("TopTracks() error = %v", err)
	}
	if tracks != nil {
		t.Errorf("TopTracks() = %v, want nil for empty month", tracks)
	}
}

func TestSourcePinsColumnTypes(t *testing.T) {
	r := &Reader{root: "/data/bucket"}

	src, err := r.source(Filter{})
	if err != nil {
		t.Fatalf("source() error = %v", err)
	}
	// Inference must never decide these types; mm:ss values would read as
	// TIME and break the minutes conversion.
	for _, col := range []string{"track_length: 'VARCHAR'", "artists: 'VARCHAR[]'", "played_at: 'TIMESTAMP'"} {
		if !strings.Contains(src, col) {
			t.Errorf("source() = %q, missing pinned column %q", src, col)
		}
	}
}

func TestTopTracks(t *testing.T) {
	r := fixtureReader(t)

	got, err := r.TopTracks(context.Background(), Filter{}, 10)
	if err != nil {
		t.Fatalf("TopTracks() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("TopTracks() = %v, want 2 rows", got)
	}

	if got[0].TrackName != "First Track" || got[0].Artists != "Alpha" || got[0].Plays != 2 {
		t.Errorf("top row = %+v", got[0])
	}
	if got[1].TrackName != "Second Track" || got[1].Artists != "Alpha, Beta" || got[1].Plays != 1 {
		t.Errorf("second row = %+v", got[1])
	}
}

func TestTopTracksLimit(t *testing.T) {
	r := fixtureReader(t)

	got, err := r.TopTracks(context.Background(), Filter{}, 1)
	if err != nil {
		t.Fatalf("TopTracks() error = %v", err)
	}
	if len(got) != 1 || got[0].TrackName != "First Track" {
		t.Errorf("TopTracks(1) = %v, want the single most played track", got)
	}
}

func TestTopArtists(t *testing.T) {
	r := fixtureReader(t)

	got, err := r.TopArtists(context.Background(), Filter{}, 10)
	if err != nil {
		t.Fatalf("TopArtists() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("TopArtists() = %v, want 2 rows", got)
	}

	// Every credited artist gets the full track length: Alpha is on all
	// three plays, Beta only on the second track.
	if got[0].Artist != "Alpha" || got[0].Minutes != 10.0 {
		t.Errorf("top artist = %+v, want Alpha with 10.0 minutes", got[0])
	}
	if got[1].Artist != "Beta" || got[1].Minutes != 3.0 {
		t.Errorf("second artist = %+v, want Beta with 3.0 minutes", got[1])
	}
}

func TestMinutesByDayOfWeek(t *testing.T) {
	r := fixtureReader(t)

	got, err := r.MinutesByDayOfWeek(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("MinutesByDayOfWeek() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("MinutesByDayOfWeek() = %v, want 2 buckets", got)
	}

	if got[0].Label != "Wednesday" || got[0].Minutes != 6.5 {
		t.Errorf("first bucket = %+v, want Wednesday at 6.5 minutes", got[0])
	}
	if got[1].Label != "Saturday" || got[1].Minutes != 3.5 {
		t.Errorf("second bucket = %+v, want Saturday at 3.5 minutes", got[1])
	}
}

func TestMinutesByHourOfDay(t *testing.T) {
	r := fixtureReader(t)

	got, err := r.MinutesByHourOfDay(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("MinutesByHourOfDay() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("MinutesByHourOfDay() = %v, want 3 buckets", got)
	}

	wantLabels := []string{"7", "10", "20"}
	wantMinutes := []float64{3.5, 3.0, 3.5}
	for i, bucket := range got {
		if bucket.Label != wantLabels[i] || bucket.Minutes != wantMinutes[i] {
			t.Errorf("bucket[%d] = %+v, want %s at %.1f minutes", i, bucket, wantLabels[i], wantMinutes[i])
		}
	}
}

func TestHeatmap(t *testing.T) {
	r := fixtureReader(t)

	got, err := r.Heatmap(context.Background(), "2023")
	if err != nil {
		t.Fatalf("Heatmap() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Heatmap() = %v, want 2 cells", got)
	}

	// Both March plays fall on the same Wednesday, so they share a cell.
	if got[0].Day != 3 || got[0].Minutes != 6.5 {
		t.Errorf("first cell = %+v, want Wednesday at 6.5 minutes", got[0])
	}
	if got[1].Day != 6 || got[1].Minutes != 3.5 {
		t.Errorf("second cell = %+v, want Saturday at 3.5 minutes", got[1])
	}
	if got[0].Week >= got[1].Week {
		t.Errorf("cells not in week order: %v", got)
	}
}

func TestStats(t *testing.T) {
	r := fixtureReader(t)

	got, err := r.Stats(context.Background(), Filter{Year: "2023"})
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}

	if got.Summary.TotalTracks != 3 {
		t.Errorf("summary = %+v", got.Summary)
	}
	if len(got.TopTracks) != 2 || len(got.TopArtists) != 2 {
		t.Errorf("leaderboards = %v / %v", got.TopTracks, got.TopArtists)
	}
	if len(got.Heatmap) != 2 {
		t.Errorf("heatmap = %v, want 2 cells for a year filter", got.Heatmap)
	}
}

func TestStatsWithoutYearSkipsHeatmap(t *testing.T) {
	r := fixtureReader(t)

	got, err := r.Stats(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if got.Heatmap != nil {
		t.Errorf("heatmap = %v, want nil without a year filter", got.Heatmap)
	}
}
