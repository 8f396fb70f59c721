package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregateRatings(t *testing.T) {
	tests := []struct {
		name    string
		ratings []int
		want    RatingAggregate
	}{
		{name: "empty", ratings: nil, want: RatingAggregate{}},
		{name: "single", ratings: []int{3}, want: RatingAggregate{AverageRating: 3, TotalReviews: 1}},
		{name: "half", ratings: []int{4, 5}, want: RatingAggregate{AverageRating: 4.5, TotalReviews: 2}},
		{name: "rounds up", ratings: []int{1, 2, 2}, want: RatingAggregate{AverageRating: 1.7, TotalReviews: 3}},
		{name: "rounds down", ratings: []int{5, 4, 4}, want: RatingAggregate{AverageRating: 4.3, TotalReviews: 3}},
		{name: "half up at second decimal", ratings: []int{1, 1, 1, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2}, want: RatingAggregate{AverageRating: 1.9, TotalReviews: 20}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, AggregateRatings(tc.ratings))
		})
	}
}

func TestAggregateRatingsOrderIndependent(t *testing.T) {
	a := AggregateRatings([]int{5, 4, 1, 3})
	b := AggregateRatings([]int{1, 3, 4, 5})
	assert.Equal(t, a, b)
}

func TestValidRating(t *testing.T) {
	for r := -1; r <= 7; r++ {
		assert.Equal(t, r >= 1 && r <= 5, ValidRating(r), "rating %d", r)
	}
}
