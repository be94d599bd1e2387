package audit

import (
	"github.com/jonesrussell/seo-audit/internal/database"
)

// Field weights reflect relative external-API cost: backlinks lookups are by
// far the slowest, position lookups run one item at a time.
const (
	weightBacklinks = 4
	weightPosition  = 2
	weightTraffic   = 1
	weightNoindex   = 1

	weightTotal = weightBacklinks + weightPosition + weightTraffic + weightNoindex
)

// UnprocessedPercent estimates how much audit work remains, as a percentage.
// It never reports below 1 while items exist: the last percent stands for the
// classification passes that follow field collection. Zero items means zero
// work.
func UnprocessedPercent(counts *database.MissingCounts) float64 {
	if counts.Total == 0 {
		return 0
	}

	weighted := weightBacklinks*counts.Backlinks +
		weightPosition*counts.Position +
		weightTraffic*counts.Traffic +
		weightNoindex*counts.Noindex

	percent := 99 * float64(weighted) / float64(weightTotal*counts.Total)
	if percent < 1 {
		return 1
	}
	return percent
}
