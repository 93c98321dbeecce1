package detector

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monay/risk-engine/internal/domain"
	"github.com/monay/risk-engine/internal/pkg/logger"
)

type stubHourlyCounter struct {
	counts []int
}

func (s *stubHourlyCounter) HourlyCounts(context.Context, uuid.UUID, time.Time) ([]int, error) {
	return s.counts, nil
}

func newVelocity(counts []int) *VelocityDetector {
	return NewVelocityDetector(&stubHourlyCounter{counts: counts}, testDetectorsConfig(), logger.Nop())
}

func TestVelocityAbstainsWithoutBuckets(t *testing.T) {
	d := newVelocity(nil)

	f, err := d.Detect(context.Background(), &Input{Transaction: makeTx(20, 14, "GROCERY")})
	require.NoError(t, err)
	assert.Equal(t, domain.FindingPass, f.Status)
	assert.Empty(t, f.Details)
}

func TestVelocityZeroHistoryFirstTransactionPasses(t *testing.T) {
	// An account with no activity reads 24 zero buckets from the cache.
	// The stddev floor keeps the threshold above the single incoming
	// transaction, so a first purchase never scores.
	d := newVelocity(make([]int, 24))

	f, err := d.Detect(context.Background(), &Input{Transaction: makeTx(20, 14, "GROCERY")})
	require.NoError(t, err)
	assert.Equal(t, domain.FindingPass, f.Status)
	assert.Zero(t, f.Score)
	assert.Empty(t, f.Details)
}

func TestVelocityQuietAccountPasses(t *testing.T) {
	counts := make([]int, 24)
	for i := range counts {
		counts[i] = 2
	}
	d := newVelocity(counts)

	f, err := d.Detect(context.Background(), &Input{Transaction: makeTx(20, 14, "GROCERY")})
	require.NoError(t, err)
	assert.Empty(t, f.Details)
}

func TestVelocityBurstAgainstTrailingAverage(t *testing.T) {
	// 23 trailing buckets of 2, current bucket at 11 (+1 incoming = 12).
	// Average 2, floored stddev 1, threshold 4: a clear burst.
	counts := make([]int, 24)
	for i := range counts {
		counts[i] = 2
	}
	counts[23] = 11
	d := newVelocity(counts)

	f, err := d.Detect(context.Background(), &Input{Transaction: makeTx(20, 14, "GROCERY")})
	require.NoError(t, err)
	require.Len(t, f.Details, 1)
	assert.Equal(t, "velocity_burst", f.Details[0].Type)
	// excess = 12 - 2 = 10, score = min(20, 30)
	assert.Equal(t, 20.0, f.Details[0].Score)
	assert.Equal(t, domain.FindingWarning, f.Status)
}

func TestVelocityAbsoluteFloorCatchesNoisyBaseline(t *testing.T) {
	// High-variance history pushes the statistical threshold above the
	// current count, but 15 transactions in an hour trips the floor anyway
	counts := []int{0, 30, 0, 30, 0, 30, 0, 30, 0, 30, 0, 30, 0, 30, 0, 30, 0, 30, 0, 30, 0, 30, 0, 14}
	d := newVelocity(counts)

	f, err := d.Detect(context.Background(), &Input{Transaction: makeTx(20, 14, "GROCERY")})
	require.NoError(t, err)
	require.Len(t, f.Details, 1)
	assert.Equal(t, domain.FindingWarning, f.Status)
}

func TestVelocityScoreCap(t *testing.T) {
	counts := make([]int, 24)
	counts[23] = 40
	d := newVelocity(counts)

	f, err := d.Detect(context.Background(), &Input{Transaction: makeTx(20, 14, "GROCERY")})
	require.NoError(t, err)
	require.Len(t, f.Details, 1)
	assert.Equal(t, 30.0, f.Details[0].Score)
}

func TestMeanStdDev(t *testing.T) {
	avg, stddev := meanStdDev([]int{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5.0, avg, 0.001)
	assert.InDelta(t, 2.0, stddev, 0.001)

	avg, stddev = meanStdDev(nil)
	assert.Zero(t, avg)
	assert.Zero(t, stddev)
}
