package repository

import (
	"math"
	"testing"
)

func TestFoldRating(t *testing.T) {
	cases := []struct {
		name      string
		avg       float64
		count     int
		stars     int
		wantAvg   float64
		wantCount int
	}{
		{"first rating", 0, 0, 5, 5, 1},
		{"second rating", 5, 1, 3, 4, 2},
		{"third rating", 4, 2, 4, 4, 3},
		{"low after highs", 4.5, 2, 1, 10.0 / 3.0, 3},
		{"negative count treated as zero", 4.5, -1, 3, 3, 1},
	}
	for _, c := range cases {
		avg, count := foldRating(c.avg, c.count, c.stars)
		if math.Abs(avg-c.wantAvg) > 1e-9 {
			t.Errorf("%s: avg = %v, want %v", c.name, avg, c.wantAvg)
		}
		if count != c.wantCount {
			t.Errorf("%s: count = %d, want %d", c.name, count, c.wantCount)
		}
	}
}

// The denominator is the rating count, never the trip count: a driver with
// many delivered trips and one 5-star rating averages exactly 5.
func TestFoldRating_IndependentOfTrips(t *testing.T) {
	avg, count := foldRating(0, 0, 5)
	if avg != 5 || count != 1 {
		t.Errorf("fold = (%v, %d), want (5, 1)", avg, count)
	}
	// A second 5 keeps the average at 5 regardless of how many deliveries
	// happened in between.
	avg, count = foldRating(avg, count, 5)
	if avg != 5 || count != 2 {
		t.Errorf("fold = (%v, %d), want (5, 2)", avg, count)
	}
}
