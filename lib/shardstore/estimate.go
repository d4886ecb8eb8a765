package shardstore

import (
	"fmt"
	"math"

	"github.com/ValentinKolb/loadit/lib/codec"
	"github.com/ValentinKolb/loadit/lib/common"
	"github.com/ValentinKolb/loadit/lib/source"
	"github.com/ValentinKolb/loadit/lib/util"
	"github.com/docker/go-units"
)

// DefaultEstimateSamples is the number of items sampled by EstimateShardLength
const DefaultEstimateSamples = 16

// ParseShardSize parses a byte budget such as "64mb" or "1GiB"
func ParseShardSize(size string) (int64, error) {
	budget, err := units.RAMInBytes(size)
	if err != nil {
		return 0, common.WrapError(common.ErrCConfiguration, err, "invalid max shard size %q", size)
	}
	if budget < 1 {
		return 0, common.NewError(common.ErrCConfiguration, "max shard size must be positive, got %q", size)
	}
	return budget, nil
}

// EstimateShardLength converts a byte budget into an item count. It encodes the
// first samples items of a fresh iterator one by one and divides the budget by
// the mean encoded size. The result is at least 1.
func EstimateShardLength[T any](factory source.Factory[T], c codec.Codec[T], budget int64, samples int) (int, error) {
	if factory == nil {
		return 0, common.NewError(common.ErrCNoSource, "shard length estimation needs a source")
	}
	if samples < 1 {
		samples = DefaultEstimateSamples
	}

	items, err := source.Drain(factory, samples)
	if err != nil {
		return 0, common.WrapError(common.ErrCProduction, err, "failed to sample source")
	}
	if len(items) == 0 {
		return 0, common.NewError(common.ErrCEmptySource, "no items to estimate the shard length from")
	}

	hist := util.NewSizeHistogram()
	for i := range items {
		encoded, err := c.Encode(items[i : i+1])
		if err != nil {
			return 0, fmt.Errorf("failed to encode sample %d: %w", i, err)
		}
		hist.AddSample(len(encoded))
	}

	mean := hist.AverageSize()
	if mean <= 0 {
		return 1, nil
	}
	length := int(math.Floor(float64(budget) / mean))
	log.Infof("estimated max shard length %d from %d samples (mean %.1f bytes, median ~%d bytes, budget %s)",
		max(length, 1), hist.GetCount(), mean, hist.MedianEstimate(), units.BytesSize(float64(budget)))
	return max(length, 1), nil
}
