package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestFilterEmptyQueryReturnsEverything(t *testing.T) {
	records := []Record{
		{ID: "1", Name: "Water Bottle", Location: "Gym"},
		{ID: "2", Name: "Umbrella", Location: "Library"},
		{ID: "3", Name: "Keys", Location: "Cafeteria"},
	}

	result := Filter(records, "")

	assert.Equal(t, []string{"1", "2", "3"}, ids(result), "empty query keeps original order")
}

func TestFilterWhitespaceQueryMatchesNothing(t *testing.T) {
	records := []Record{
		{ID: "1", Name: "Water Bottle", Location: "Gym"},
	}

	assert.Empty(t, Filter(records, "   "))
	assert.Empty(t, Filter(records, "\t\n"))
}

func TestFilterToleratesTypos(t *testing.T) {
	records := []Record{
		{ID: "1", Name: "Water Bottle", Location: "Gym"},
		{ID: "2", Name: "Umbrella", Location: "Library"},
	}

	// one edit away from "bottle", inside the 40% budget
	result := Filter(records, "botle")

	require.Len(t, result, 1)
	assert.Equal(t, "1", result[0].ID)
}

func TestFilterExcludesUnrelatedQueries(t *testing.T) {
	records := []Record{
		{ID: "1", Name: "Water Bottle", Location: "Gym"},
		{ID: "2", Name: "Umbrella", Location: "Library"},
	}

	assert.Empty(t, Filter(records, "xyz123"))
}

func TestFilterMatchesLocationField(t *testing.T) {
	records := []Record{
		{ID: "1", Name: "Keys", Location: "Library"},
		{ID: "2", Name: "Keys", Location: "Gym"},
	}

	result := Filter(records, "library")

	require.Len(t, result, 1)
	assert.Equal(t, "1", result[0].ID)
}

func TestFilterRanksCloserMatchesFirst(t *testing.T) {
	records := []Record{
		{ID: "approx", Name: "Blae Bottle", Location: "Gym"},
		{ID: "exact", Name: "Blue Bottle", Location: "Gym"},
	}

	result := Filter(records, "blue bottle")

	require.Len(t, result, 2)
	assert.Equal(t, "exact", result[0].ID)
	assert.Equal(t, "approx", result[1].ID)
}

func TestFilterTiesKeepInputOrder(t *testing.T) {
	records := []Record{
		{ID: "first", Name: "Red Scarf", Location: "Gym"},
		{ID: "second", Name: "Red Scarf", Location: "Library"},
	}

	result := Filter(records, "scarf")

	require.Len(t, result, 2)
	assert.Equal(t, []string{"first", "second"}, ids(result))
}

func TestFilterAllTokensMustMatch(t *testing.T) {
	records := []Record{
		{ID: "1", Name: "Water Bottle", Location: "Gym"},
	}

	// "water" matches but "umbrella" does not, so the record is excluded
	assert.Empty(t, Filter(records, "water umbrella"))
}

func TestFilterEmptyCandidates(t *testing.T) {
	assert.Empty(t, Filter(nil, "anything"))
	assert.Empty(t, Filter([]Record{}, ""))
}
