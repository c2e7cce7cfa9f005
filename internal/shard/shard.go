// Package shard names the regional data shards and their stream destinations.
package shard

import "fmt"

// ID identifies one of the regional shards. The lowercase form is part of the
// external contract: it is the suffix of each shard's ingestion topic.
type ID string

const (
	S1 ID = "s1"
	S2 ID = "s2"
	S3 ID = "s3"
)

// All returns the shards in their fixed check order. Existence probes and
// tests rely on this order being stable.
func All() []ID {
	return []ID{S1, S2, S3}
}

// Parse validates an externally supplied shard identifier.
func Parse(raw string) (ID, error) {
	id := ID(raw)
	for _, known := range All() {
		if id == known {
			return id, nil
		}
	}
	return "", fmt.Errorf("unknown shard id %q", raw)
}

// Topic returns the ingestion stream destination for this shard.
func (id ID) Topic(prefix string) string {
	return prefix + string(id)
}

func (id ID) String() string {
	return string(id)
}
