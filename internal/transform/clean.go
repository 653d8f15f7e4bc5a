package transform

import (
	"time"

	"github.com/raphaelgruber/bikepaths/internal/models"
)

// Clean runs TransformOne over a batch in a single pass. A bad record never
// affects its neighbours. Accepted and rejected keep input order, and
// rejection reasons are counted per individual validation error.
func Clean(raws []models.RawRecord, extractionTime time.Time, sourceURL string) ([]models.BikePath, []models.Rejection, models.BatchStats) {
	accepted := make([]models.BikePath, 0, len(raws))
	var rejected []models.Rejection
	stats := models.BatchStats{
		Total:            len(raws),
		RejectionReasons: make(map[string]int),
	}

	for i, raw := range raws {
		rec, rej := TransformOne(raw, extractionTime, sourceURL)
		if rej != nil {
			rej.Index = i
			rejected = append(rejected, *rej)
			for _, e := range rej.Errors {
				stats.RejectionReasons[e]++
			}
			continue
		}
		accepted = append(accepted, rec)
	}

	stats.Accepted = len(accepted)
	stats.Rejected = len(rejected)
	return accepted, rejected, stats
}
