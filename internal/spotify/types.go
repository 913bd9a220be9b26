package spotify

// RawPlayEvent is a single item from the recently-played endpoint, decoded
// only as far as the ETL needs. The unmodified item JSON is retained
// separately so the raw audit trail stays byte-faithful to the API.
type RawPlayEvent struct {
	Track    RawTrack `json:"track"`
	PlayedAt string   `json:"played_at"`
}

// RawTrack is the nested track metadata of a play event.
type RawTrack struct {
	URI          string          `json:"uri"`
	Name         string          `json:"name"`
	DurationMS   int64           `json:"duration_ms"`
	Popularity   int             `json:"popularity"`
	Album        RawAlbum        `json:"album"`
	Artists      []RawArtist     `json:"artists"`
	ExternalURLs RawExternalURLs `json:"external_urls"`
}

// RawAlbum carries the album fields used by the ETL.
type RawAlbum struct {
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
}

// RawArtist carries a single artist name.
type RawArtist struct {
	Name string `json:"name"`
}

// RawExternalURLs carries the track's public URL.
type RawExternalURLs struct {
	Spotify string `json:"spotify"`
}

// RecentlyPlayed is the result of one recently-played fetch.
type RecentlyPlayed struct {
	// Events are the decoded play events, oldest-visible window first as
	// returned by the API.
	Events []RawPlayEvent

	// Raw is the verbatim items array from the API response, persisted
	// unchanged to the raw object prefix.
	Raw []byte
}
