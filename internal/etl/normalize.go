// Package etl transforms raw recently-played events into normalized track
// records partitioned by the year and month they were played in.
package etl

import (
	"fmt"
	"sort"
	"time"

	"github.com/amolrairikar/spotify-listening-history-app/internal/faults"
	"github.com/amolrairikar/spotify-listening-history-app/internal/spotify"
)

const (
	// playedAtUTCLayout is the timestamp format the streaming API returns.
	playedAtUTCLayout = "2006-01-02T15:04:05.000Z"

	// playedAtLocalLayout is the localized format stored in partitions.
	playedAtLocalLayout = "2006-01-02T15:04:05"
)

const stageETL = "etl"

// TrackRecord is the flattened projection of a single raw play event.
type TrackRecord struct {
	TrackID         string   `json:"track_id"`
	Album           string   `json:"album"`
	ReleaseDate     string   `json:"release_date"`
	Artists         []string `json:"artists"`
	TrackLength     string   `json:"track_length"`
	TrackName       string   `json:"track_name"`
	TrackURL        string   `json:"track_url"`
	TrackPopularity int      `json:"track_popularity"`
	PlayedAt        string   `json:"played_at"`
}

// YearMonth identifies one partition. Month is zero-padded ("01".."12").
type YearMonth struct {
	Year  string
	Month string
}

// Prefix returns the object key prefix for the partition.
func (ym YearMonth) Prefix() string {
	return fmt.Sprintf("processed/year=%s/month=%s", ym.Year, ym.Month)
}

// MillisecondsToMMSS converts a duration in milliseconds to a zero-padded
// mm:ss string. Non-positive durations are a hard validation error, never a
// silent default.
func MillisecondsToMMSS(ms int64) (string, error) {
	if ms <= 0 {
		return "", faults.Validation(stageETL, fmt.Errorf("track length must be positive, got %d", ms))
	}

	minutes := ms / 60000
	seconds := (ms / 1000) % 60
	return fmt.Sprintf("%02d:%02d", minutes, seconds), nil
}

// LocalizeTimestamp converts an API UTC timestamp to the configured local
// timezone, formatted without offset. Malformed input is a validation error.
func LocalizeTimestamp(utcString string, loc *time.Location) (string, error) {
	ts, err := time.Parse(playedAtUTCLayout, utcString)
	if err != nil {
		return "", faults.Validation(stageETL, fmt.Errorf("parsing played-at timestamp %q: %w", utcString, err))
	}
	return ts.In(loc).Format(playedAtLocalLayout), nil
}

// Normalize projects raw play events into track records keyed by track URI.
// When the same URI appears more than once in a batch, the later occurrence
// wins. Any malformed event fails the whole batch.
func Normalize(events []spotify.RawPlayEvent, loc *time.Location) (map[string]TrackRecord, error) {
	records := make(map[string]TrackRecord, len(events))

	for _, ev := range events {
		length, err := MillisecondsToMMSS(ev.Track.DurationMS)
		if err != nil {
			return nil, fmt.Errorf("track %q: %w", ev.Track.URI, err)
		}

		playedAt, err := LocalizeTimestamp(ev.PlayedAt, loc)
		if err != nil {
			return nil, fmt.Errorf("track %q: %w", ev.Track.URI, err)
		}

		artists := make([]string, 0, len(ev.Track.Artists))
		for _, artist := range ev.Track.Artists {
			artists = append(artists, artist.Name)
		}

		records[ev.Track.URI] = TrackRecord{
			TrackID:         ev.Track.URI,
			Album:           ev.Track.Album.Name,
			ReleaseDate:     ev.Track.Album.ReleaseDate,
			Artists:         artists,
			TrackLength:     length,
			TrackName:       ev.Track.Name,
			TrackURL:        ev.Track.ExternalURLs.Spotify,
			TrackPopularity: ev.Track.Popularity,
			PlayedAt:        playedAt,
		}
	}

	return records, nil
}

// PartitionByMonth groups records by the (year, month) of their local
// played-at timestamp. Every record lands in exactly one partition; records
// within a partition are ordered by track ID for stable output.
func PartitionByMonth(records map[string]TrackRecord) map[YearMonth][]TrackRecord {
	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	partitions := make(map[YearMonth][]TrackRecord)
	for _, id := range ids {
		record := records[id]
		ym := YearMonth{Year: record.PlayedAt[:4], Month: record.PlayedAt[5:7]}
		partitions[ym] = append(partitions[ym], record)
	}
	return partitions
}
