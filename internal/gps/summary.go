package gps

import "math"

// Summary aggregates the stored GPS verdicts of many visits for the
// manager reporting views.
type Summary struct {
	TotalVisits     int     `json:"total_visits"`
	VisitsWithGPS   int     `json:"visits_with_gps"`
	ValidVisits     int     `json:"valid_visits"`
	InvalidVisits   int     `json:"invalid_visits"`
	PartialVisits   int     `json:"partial_visits"`
	NoDataVisits    int     `json:"no_data_visits"`
	AverageDistance float64 `json:"average_distance"`
	ValidationRate  int     `json:"validation_rate"` // percent of scored visits that passed
}

// Summarize rolls a slice of visit verdicts into summary statistics.
// Visits with status no_data count toward the total but not toward the
// average distance or validation rate.
func Summarize(results []Result) Summary {
	s := Summary{TotalVisits: len(results)}

	var distanceSum float64
	for _, r := range results {
		if r.Status == StatusNoData {
			s.NoDataVisits++
			continue
		}
		s.VisitsWithGPS++
		switch r.Status {
		case StatusInvalid:
			s.InvalidVisits++
		case StatusPartial:
			s.PartialVisits++
		}
		if r.IsValid {
			s.ValidVisits++
		}

		var sum float64
		var n int
		for _, d := range []*float64{r.StartAuditDistance, r.PhotoClickDistance, r.ProceedClickDistance} {
			if d != nil {
				sum += *d
				n++
			}
		}
		if n > 0 {
			distanceSum += sum / float64(n)
		}
	}

	if s.VisitsWithGPS > 0 {
		s.AverageDistance = math.Round(distanceSum/float64(s.VisitsWithGPS)*100) / 100
		s.ValidationRate = int(math.Round(float64(s.ValidVisits) / float64(s.VisitsWithGPS) * 100))
	}
	return s
}
