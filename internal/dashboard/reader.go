// Package dashboard aggregates the processed partition tree into listening
// statistics. Queries run through an in-process DuckDB over the partitioned
// JSON files; no data is copied into a database first.
package dashboard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/amolrairikar/spotify-listening-history-app/internal/faults"
)

const stageDashboard = "dashboard"

var (
	yearPattern  = regexp.MustCompile(`^\d{4}$`)
	monthPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])$`)
)

// minutesExpr converts the stored mm:ss track length to fractional minutes.
const minutesExpr = `(CAST(split_part(track_length, ':', 1) AS INTEGER) * 60 + CAST(split_part(track_length, ':', 2) AS INTEGER)) / 60.0`

// readColumns pins the partition schema. Without it DuckDB infers column
// types per batch, and mm:ss lengths under an hour read as TIME while longer
// ones stay VARCHAR, breaking split_part.
const readColumns = `columns = {track_id: 'VARCHAR', album: 'VARCHAR', release_date: 'VARCHAR', artists: 'VARCHAR[]', track_length: 'VARCHAR', track_name: 'VARCHAR', track_url: 'VARCHAR', track_popularity: 'INTEGER', played_at: 'TIMESTAMP'}`

// Filter narrows queries to one partition year or month. Empty fields mean
// all-time. Month requires Year; values are the partition spellings (4-digit
// year, zero-padded month).
type Filter struct {
	Year  string
	Month string
}

func (f Filter) validate() error {
	if f.Year == "" && f.Month != "" {
		return faults.Validation(stageDashboard, fmt.Errorf("month filter requires a year"))
	}
	if f.Year != "" && !yearPattern.MatchString(f.Year) {
		return faults.Validation(stageDashboard, fmt.Errorf("invalid year %q", f.Year))
	}
	if f.Month != "" && !monthPattern.MatchString(f.Month) {
		return faults.Validation(stageDashboard, fmt.Errorf("invalid month %q", f.Month))
	}
	return nil
}

// Reader answers aggregate queries over the processed tree under root.
type Reader struct {
	db   *sql.DB
	root string
}

// NewReader opens an in-memory DuckDB session reading partition files under
// the given bucket root.
func NewReader(root string) (*Reader, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("opening duckdb: %w", err)
	}
	return &Reader{db: db, root: filepath.ToSlash(root)}, nil
}

// Close releases the DuckDB session.
func (r *Reader) Close() error {
	return r.db.Close()
}

// source builds the read_json clause for the filter, pruning the file glob
// to the partition directories the filter selects. Filter values are
// validated before interpolation.
func (r *Reader) source(f Filter) (string, error) {
	if err := f.validate(); err != nil {
		return "", err
	}

	var glob string
	switch {
	case f.Year != "" && f.Month != "":
		glob = fmt.Sprintf("%s/processed/year=%s/month=%s/*.json", r.root, f.Year, f.Month)
	case f.Year != "":
		glob = fmt.Sprintf("%s/processed/year=%s/**/*.json", r.root, f.Year)
	default:
		glob = fmt.Sprintf("%s/processed/**/*.json", r.root)
	}
	return fmt.Sprintf("read_json('%s', %s, hive_partitioning = 1)", glob, readColumns), nil
}

// partitionDir returns the narrowest directory the filter can match.
func (r *Reader) partitionDir(f Filter) string {
	dir := filepath.Join(filepath.FromSlash(r.root), "processed")
	if f.Year != "" {
		dir = filepath.Join(dir, "year="+f.Year)
	}
	if f.Month != "" {
		dir = filepath.Join(dir, "month="+f.Month)
	}
	return dir
}

// hasFiles reports whether any partition file exists for the filter. An
// empty window renders as empty results; DuckDB would instead fail the glob.
func (r *Reader) hasFiles(f Filter) (bool, error) {
	found := false
	err := filepath.WalkDir(r.partitionDir(f), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".json") {
			found = true
			return fs.SkipAll
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("scanning partition tree: %w", err)
	}
	return found, nil
}

// Summary is the headline metric row.
type Summary struct {
	TotalTracks     int     `json:"total_tracks"`
	DistinctArtists int     `json:"distinct_artists"`
	TotalMinutes    float64 `json:"total_minutes"`
	MeanPopularity  float64 `json:"mean_popularity"`
}

// TrackCount is one row of the play-count leaderboard.
type TrackCount struct {
	TrackName string `json:"track_name"`
	Artists   string `json:"artists"`
	Plays     int    `json:"plays"`
}

// ArtistMinutes is one row of the artist listening-time leaderboard.
type ArtistMinutes struct {
	Artist  string  `json:"artist"`
	Minutes float64 `json:"minutes"`
}

// BucketMinutes is listening time in one day-of-week or hour-of-day bucket.
type BucketMinutes struct {
	Label   string  `json:"label"`
	Minutes float64 `json:"minutes"`
}

// HeatmapCell is listening time for one (week of year, day of week) cell.
// Day follows DuckDB's dayofweek numbering, 0 Sunday through 6 Saturday.
type HeatmapCell struct {
	Week    int     `json:"week"`
	Day     int     `json:"day"`
	Minutes float64 `json:"minutes"`
}

// Summary computes the headline metrics for the filtered window.
func (r *Reader) Summary(ctx context.Context, f Filter) (Summary, error) {
	src, err := r.source(f)
	if err != nil {
		return Summary{}, err
	}
	if ok, err := r.hasFiles(f); err != nil || !ok {
		return Summary{}, err
	}

	var s Summary
	query := fmt.Sprintf(`
		SELECT COUNT(*),
		       COALESCE(ROUND(SUM(%s), 1), 0),
		       COALESCE(ROUND(AVG(track_popularity), 1), 0)
		FROM %s
	`, minutesExpr, src)
	err = r.db.QueryRowContext(ctx, query).Scan(&s.TotalTracks, &s.TotalMinutes, &s.MeanPopularity)
	if err != nil {
		return Summary{}, fmt.Errorf("querying summary: %w", err)
	}

	query = fmt.Sprintf(`
		SELECT COUNT(DISTINCT artist)
		FROM (SELECT unnest(artists) AS artist FROM %s)
	`, src)
	if err := r.db.QueryRowContext(ctx, query).Scan(&s.DistinctArtists); err != nil {
		return Summary{}, fmt.Errorf("querying distinct artists: %w", err)
	}
	return s, nil
}

// TopTracks returns the n most played tracks, most played first.
func (r *Reader) TopTracks(ctx context.Context, f Filter, n int) ([]TrackCount, error) {
	src, err := r.source(f)
	if err != nil {
		return nil, err
	}
	if ok, err := r.hasFiles(f); err != nil || !ok {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT track_name, array_to_string(artists, ', ') AS track_artists, COUNT(*) AS plays
		FROM %s
		GROUP BY track_name, track_artists
		ORDER BY plays DESC, track_name
		LIMIT %d
	`, src, n)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying top tracks: %w", err)
	}
	defer rows.Close()

	var out []TrackCount
	for rows.Next() {
		var tc TrackCount
		if err := rows.Scan(&tc.TrackName, &tc.Artists, &tc.Plays); err != nil {
			return nil, fmt.Errorf("scanning top tracks: %w", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// TopArtists returns the n artists with the most listened minutes. A play
// counts its full track length toward every credited artist.
func (r *Reader) TopArtists(ctx context.Context, f Filter, n int) ([]ArtistMinutes, error) {
	src, err := r.source(f)
	if err != nil {
		return nil, err
	}
	if ok, err := r.hasFiles(f); err != nil || !ok {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT artist, ROUND(SUM(minutes), 1) AS minutes
		FROM (SELECT unnest(artists) AS artist, %s AS minutes FROM %s)
		GROUP BY artist
		ORDER BY minutes DESC, artist
		LIMIT %d
	`, minutesExpr, src, n)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying top artists: %w", err)
	}
	defer rows.Close()

	var out []ArtistMinutes
	for rows.Next() {
		var am ArtistMinutes
		if err := rows.Scan(&am.Artist, &am.Minutes); err != nil {
			return nil, fmt.Errorf("scanning top artists: %w", err)
		}
		out = append(out, am)
	}
	return out, rows.Err()
}

// MinutesByDayOfWeek returns listening minutes per weekday, Sunday first.
func (r *Reader) MinutesByDayOfWeek(ctx context.Context, f Filter) ([]BucketMinutes, error) {
	query := `
		SELECT dayname(CAST(played_at AS TIMESTAMP)) AS day,
		       ROUND(SUM(%s), 1) AS minutes
		FROM %s
		GROUP BY day, dayofweek(CAST(played_at AS TIMESTAMP))
		ORDER BY dayofweek(CAST(played_at AS TIMESTAMP))
	`
	return r.bucketQuery(ctx, f, query, "minutes by day of week")
}

// MinutesByHourOfDay returns listening minutes per local hour, 0 through 23.
func (r *Reader) MinutesByHourOfDay(ctx context.Context, f Filter) ([]BucketMinutes, error) {
	query := `
		SELECT CAST(hour(CAST(played_at AS TIMESTAMP)) AS VARCHAR) AS hour,
		       ROUND(SUM(%s), 1) AS minutes
		FROM %s
		GROUP BY hour(CAST(played_at AS TIMESTAMP))
		ORDER BY hour(CAST(played_at AS TIMESTAMP))
	`
	return r.bucketQuery(ctx, f, query, "minutes by hour of day")
}

func (r *Reader) bucketQuery(ctx context.Context, f Filter, template, what string) ([]BucketMinutes, error) {
	src, err := r.source(f)
	if err != nil {
		return nil, err
	}
	if ok, err := r.hasFiles(f); err != nil || !ok {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(template, minutesExpr, src))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", what, err)
	}
	defer rows.Close()

	var out []BucketMinutes
	for rows.Next() {
		var bm BucketMinutes
		if err := rows.Scan(&bm.Label, &bm.Minutes); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", what, err)
		}
		out = append(out, bm)
	}
	return out, rows.Err()
}

// Heatmap returns listening minutes per (week of year, day of week) cell for
// one calendar year.
func (r *Reader) Heatmap(ctx context.Context, year string) ([]HeatmapCell, error) {
	src, err := r.source(Filter{Year: year})
	if err != nil {
		return nil, err
	}
	if ok, err := r.hasFiles(Filter{Year: year}); err != nil || !ok {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT weekofyear(CAST(played_at AS TIMESTAMP)) AS week,
		       dayofweek(CAST(played_at AS TIMESTAMP)) AS day,
		       ROUND(SUM(%s), 1) AS minutes
		FROM %s
		WHERE year(CAST(played_at AS TIMESTAMP)) = %s
		GROUP BY week, day
		ORDER BY week, day
	`, minutesExpr, src, year)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying heatmap: %w", err)
	}
	defer rows.Close()

	var out []HeatmapCell
	for rows.Next() {
		var cell HeatmapCell
		if err := rows.Scan(&cell.Week, &cell.Day, &cell.Minutes); err != nil {
			return nil, fmt.Errorf("scanning heatmap: %w", err)
		}
		out = append(out, cell)
	}
	return out, rows.Err()
}
