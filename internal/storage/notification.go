package storage

import (
	"fmt"

	"github.com/amolrairikar/spotify-listening-history-app/internal/faults"
)

// Notification is the object-created event payload that triggers the
// transformer. The shape mirrors the storage provider's event schema:
// Records[0].s3.bucket.name and Records[0].s3.object.key.
type Notification struct {
	Records []NotificationRecord `json:"Records"`
}

// NotificationRecord is a single entry in a storage event.
type NotificationRecord struct {
	S3 S3Entity `json:"s3"`
}

// S3Entity carries the bucket and object the event refers to.
type S3Entity struct {
	Bucket struct {
		Name string `json:"name"`
	} `json:"bucket"`
	Object struct {
		Key string `json:"key"`
	} `json:"object"`
}

// BucketAndKey extracts the bucket name and object key from the first record.
// A payload with no records is a validation fault; records missing the s3
// fields yield empty strings, which callers must reject before use.
func (n Notification) BucketAndKey() (bucket, key string, err error) {
	if len(n.Records) == 0 {
		return "", "", faults.Validation(stageStorage, fmt.Errorf("no data present in event payload"))
	}

	entity := n.Records[0].S3
	return entity.Bucket.Name, entity.Object.Key, nil
}
