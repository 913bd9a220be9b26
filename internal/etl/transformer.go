package etl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/amolrairikar/spotify-listening-history-app/internal/faults"
	"github.com/amolrairikar/spotify-listening-history-app/internal/logging"
	"github.com/amolrairikar/spotify-listening-history-app/internal/retry"
	"github.com/amolrairikar/spotify-listening-history-app/internal/spotify"
	"github.com/amolrairikar/spotify-listening-history-app/internal/storage"
)

// Outcome is the structured status a transformer invocation reports to its
// caller, mirroring an HTTP status taxonomy: 200 success, 204 empty input,
// 400 invalid notification or data, 404 missing raw object, 500 failure.
type Outcome struct {
	Code int    `json:"statusCode"`
	Body string `json:"body"`
}

// Transformer reads one raw object, normalizes its events, and writes one
// partition object per (year, month) present in the batch.
type Transformer struct {
	store storage.ObjectStore
	loc   *time.Location
	retry retry.Policy

	// newID names partition objects; injectable for tests.
	newID func() string
}

// NewTransformer creates a Transformer writing through the given store.
func NewTransformer(store storage.ObjectStore, loc *time.Location, policy retry.Policy) *Transformer {
	return &Transformer{
		store: store,
		loc:   loc,
		retry: policy,
		newID: uuid.NewString,
	}
}

// Handle processes one object-created notification. Already-written
// partitions are left in place when a later write fails; duplicate partition
// files from a retried invocation are tolerated downstream.
func (t *Transformer) Handle(ctx context.Context, n storage.Notification) (Outcome, error) {
	bucket, key, err := n.BucketAndKey()
	if err != nil {
		return Outcome{Code: http.StatusBadRequest, Body: err.Error()}, err
	}
	if bucket == "" || key == "" {
		err := faults.Validation(stageETL, fmt.Errorf("event payload is missing bucket name or object key"))
		return Outcome{Code: http.StatusBadRequest, Body: err.Error()}, err
	}

	logging.Info().Str("bucket", bucket).Str("key", key).Msg("Processing raw object")

	var raw []byte
	err = t.retry.Do(ctx, "read raw object", func() error {
		var getErr error
		raw, getErr = t.store.Get(ctx, bucket, key)
		return getErr
	})
	if err != nil {
		err = fmt.Errorf("reading raw object %s/%s: %w", bucket, key, err)
		if faults.KindOf(err) == faults.KindNotFound {
			return Outcome{Code: http.StatusNotFound, Body: err.Error()}, err
		}
		return Outcome{Code: http.StatusInternalServerError, Body: err.Error()}, err
	}

	var events []spotify.RawPlayEvent
	if err := json.Unmarshal(raw, &events); err != nil {
		err = faults.Validation(stageETL, fmt.Errorf("parsing raw object %s/%s: %w", bucket, key, err))
		return Outcome{Code: http.StatusBadRequest, Body: err.Error()}, err
	}
	if len(events) == 0 {
		logging.Info().Str("key", key).Msg("Raw object contains no events")
		return Outcome{Code: http.StatusNoContent, Body: "No events present in raw object."}, nil
	}

	records, err := Normalize(events, t.loc)
	if err != nil {
		return Outcome{Code: http.StatusBadRequest, Body: err.Error()}, err
	}

	partitions := PartitionByMonth(records)
	for _, ym := range sortedPartitions(partitions) {
		body, err := json.Marshal(partitions[ym])
		if err != nil {
			return Outcome{Code: http.StatusInternalServerError, Body: err.Error()}, fmt.Errorf("encoding partition %s: %w", ym.Prefix(), err)
		}

		objectKey := fmt.Sprintf("%s/%s.json", ym.Prefix(), t.newID())
		err = t.retry.Do(ctx, "write partition object", func() error {
			return t.store.Put(ctx, bucket, objectKey, body, storage.ContentTypeJSON)
		})
		if err != nil {
			err = fmt.Errorf("writing partition object %s: %w", objectKey, err)
			return Outcome{Code: http.StatusInternalServerError, Body: err.Error()}, err
		}

		logging.Info().
			Str("key", objectKey).
			Int("records", len(partitions[ym])).
			Msg("Wrote partition object")
	}

	return Outcome{Code: http.StatusOK, Body: "Execution successful"}, nil
}

// sortedPartitions returns partition keys in chronological order so writes
// and logs are deterministic.
func sortedPartitions(partitions map[YearMonth][]TrackRecord) []YearMonth {
	keys := make([]YearMonth, 0, len(partitions))
	for ym := range partitions {
		keys = append(keys, ym)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Year != keys[j].Year {
			return keys[i].Year < keys[j].Year
		}
		return keys[i].Month < keys[j].Month
	})
	return keys
}
