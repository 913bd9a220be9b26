// Package ingest runs one fetch cycle: refresh the access token, pull play
// events recorded after the stored watermark, persist the raw response, and
// advance the watermark.
package ingest

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/amolrairikar/spotify-listening-history-app/internal/faults"
	"github.com/amolrairikar/spotify-listening-history-app/internal/logging"
	"github.com/amolrairikar/spotify-listening-history-app/internal/params"
	"github.com/amolrairikar/spotify-listening-history-app/internal/retry"
	"github.com/amolrairikar/spotify-listening-history-app/internal/spotify"
	"github.com/amolrairikar/spotify-listening-history-app/internal/storage"
)

const stageIngest = "ingest"

// rawKeyTimestampLayout names raw objects by local wall-clock time.
const rawKeyTimestampLayout = "20060102150405"

// Outcome is the structured status a fetch cycle reports: 200 when new
// events were persisted, 204 when the API returned none.
type Outcome struct {
	Code int    `json:"statusCode"`
	Body string `json:"body"`
}

// ParameterStore is the slice of the parameter store the fetcher needs.
type ParameterStore interface {
	Get(ctx context.Context, name string) (string, error)
	Put(ctx context.Context, name, value string, opts params.PutOptions) error
}

// TokenExchanger refreshes access tokens.
type TokenExchanger interface {
	Exchange(ctx context.Context, mode spotify.Mode, token string) (spotify.TokenPair, error)
}

// RecentlyPlayedAPI fetches play history.
type RecentlyPlayedAPI interface {
	RecentlyPlayed(ctx context.Context, accessToken string, after int64, limit int) (*spotify.RecentlyPlayed, error)
}

// Fetcher performs one ingestion cycle against its collaborators.
type Fetcher struct {
	params    ParameterStore
	exchanger TokenExchanger
	client    RecentlyPlayedAPI
	store     storage.ObjectStore
	bucket    string
	loc       *time.Location
	retry     retry.Policy

	// now is injectable for tests.
	now func() time.Time
}

// NewFetcher creates a Fetcher writing raw objects into the given bucket.
func NewFetcher(ps ParameterStore, exchanger TokenExchanger, client RecentlyPlayedAPI, store storage.ObjectStore, bucket string, loc *time.Location, policy retry.Policy) *Fetcher {
	return &Fetcher{
		params:    ps,
		exchanger: exchanger,
		client:    client,
		store:     store,
		bucket:    bucket,
		loc:       loc,
		retry:     policy,
		now:       time.Now,
	}
}

// Run executes one fetch cycle. The watermark only advances after the raw
// object write succeeds, so a failed cycle re-fetches the same window on the
// next run. Duplicate events from overlapping windows are tolerated
// downstream.
func (f *Fetcher) Run(ctx context.Context) (Outcome, error) {
	refreshToken, err := f.getParam(ctx, params.RefreshTokenParam)
	if err != nil {
		return outcomeErr(err)
	}

	watermarkRaw, err := f.getParam(ctx, params.LastFetchedParam)
	if err != nil {
		return outcomeErr(err)
	}
	watermark, err := strconv.ParseInt(watermarkRaw, 10, 64)
	if err != nil {
		err = faults.Validation(stageIngest, fmt.Errorf("parsing watermark %q: %w", watermarkRaw, err))
		return outcomeErr(err)
	}

	var pair spotify.TokenPair
	err = f.retry.Do(ctx, "refresh access token", func() error {
		var exchErr error
		pair, exchErr = f.exchanger.Exchange(ctx, spotify.ModeRefresh, refreshToken)
		return exchErr
	})
	if err != nil {
		return outcomeErr(fmt.Errorf("refreshing access token: %w", err))
	}
	if pair.AccessToken == "" {
		err = faults.Auth(stageIngest, fmt.Errorf("no access token found in response"))
		return outcomeErr(err)
	}

	var played *spotify.RecentlyPlayed
	err = f.retry.Do(ctx, "fetch recently played", func() error {
		var fetchErr error
		played, fetchErr = f.client.RecentlyPlayed(ctx, pair.AccessToken, watermark, spotify.DefaultFetchLimit)
		return fetchErr
	})
	if err != nil {
		return outcomeErr(fmt.Errorf("fetching recently played tracks: %w", err))
	}

	if len(played.Events) == 0 {
		logging.Info().Int64("after", watermark).Msg("No new play events since watermark")
		return Outcome{Code: http.StatusNoContent, Body: "No recently played tracks found."}, nil
	}

	now := f.now()
	key := fmt.Sprintf("raw/recently_played_tracks_%s.json", now.In(f.loc).Format(rawKeyTimestampLayout))
	err = f.retry.Do(ctx, "write raw object", func() error {
		return f.store.Put(ctx, f.bucket, key, played.Raw, storage.ContentTypeJSON)
	})
	if err != nil {
		return outcomeErr(fmt.Errorf("writing raw object %s: %w", key, err))
	}
	logging.Info().Str("key", key).Int("events", len(played.Events)).Msg("Wrote raw play events")

	// Spotify rotates refresh tokens only occasionally; re-store when it did.
	if pair.RefreshToken != "" && pair.RefreshToken != refreshToken {
		err = f.retry.Do(ctx, "store rotated refresh token", func() error {
			return f.params.Put(ctx, params.RefreshTokenParam, pair.RefreshToken, params.PutOptions{
				Secret:      true,
				Overwrite:   true,
				Description: "Long-lived Spotify refresh token",
			})
		})
		if err != nil {
			return outcomeErr(fmt.Errorf("storing rotated refresh token: %w", err))
		}
		logging.Info().Msg("Stored rotated refresh token")
	}

	err = f.retry.Do(ctx, "advance watermark", func() error {
		return f.params.Put(ctx, params.LastFetchedParam, strconv.FormatInt(now.UnixMilli(), 10), params.PutOptions{
			Overwrite:   true,
			Description: "Unix milliseconds of the last successful fetch",
		})
	})
	if err != nil {
		return outcomeErr(fmt.Errorf("advancing watermark: %w", err))
	}

	return Outcome{Code: http.StatusOK, Body: "Execution successful"}, nil
}

// getParam reads one parameter through the retry policy. A missing parameter
// is fatal: the pipeline cannot run before the one-time authorization flow
// has seeded the store.
func (f *Fetcher) getParam(ctx context.Context, name string) (string, error) {
	var value string
	err := f.retry.Do(ctx, "read parameter "+name, func() error {
		var getErr error
		value, getErr = f.params.Get(ctx, name)
		return getErr
	})
	if err != nil {
		return "", fmt.Errorf("reading parameter %q: %w", name, err)
	}
	return value, nil
}

func outcomeErr(err error) (Outcome, error) {
	code := http.StatusInternalServerError
	switch faults.KindOf(err) {
	case faults.KindValidation:
		code = http.StatusBadRequest
	case faults.KindAuth:
		code = http.StatusUnauthorized
	case faults.KindNotFound:
		code = http.StatusNotFound
	}
	return Outcome{Code: code, Body: err.Error()}, err
}
