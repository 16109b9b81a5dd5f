package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestFiltersBuildQueryOmitsZeroFields(t *testing.T) {
	q := Filters{}.buildQuery()
	assert.Empty(t, q)
}

func TestFiltersBuildQueryIncludesSetFields(t *testing.T) {
	consuming := true
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := Filters{
		Provider:         "anthropic",
		Model:            "claude-sonnet-4",
		IsTokenConsuming: &consuming,
		DateFrom:         from,
	}
	q := f.buildQuery()

	assert.Equal(t, "anthropic", q["provider"])
	assert.Equal(t, "claude-sonnet-4", q["model"])
	assert.Equal(t, true, q["is_token_consuming"])

	ts, ok := q["timestamp"].(bson.M)
	require := assert.New(t)
	require.True(ok)
	require.Equal(from, ts["$gte"])
}
