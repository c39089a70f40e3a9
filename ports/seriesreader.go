package ports

import (
	"context"

	"ratecast/domain/timeseries"
)

// SeriesReader loads the tracked exchange-rate series from an external
// source. The returned series satisfies the strictly-increasing index
// invariant or the read fails; the core never repairs a broken index.
type SeriesReader interface {
	Read(ctx context.Context, source string) (timeseries.Series, error)
}
