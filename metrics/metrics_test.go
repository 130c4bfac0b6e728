package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/google/memvfs/metrics"
)

type MetricsTest struct {
	suite.Suite
}

func TestMetricsSuite(t *testing.T) {
	suite.Run(t, new(MetricsTest))
}

func (t *MetricsTest) counterValue(r *metrics.Recorder, name string) float64 {
	families, err := r.Registry().Gather()
	t.Require().NoError(err)
	for _, f := range families {
		if f.GetName() == name {
			var total float64
			for _, m := range f.GetMetric() {
				total += m.GetCounter().GetValue()
			}
			return total
		}
	}
	t.Failf("metric not found", "name=%s", name)
	return 0
}

func (t *MetricsTest) TestCountersIncrement() {
	r := metrics.NewRecorder()
	r.IncOpens()
	r.IncOpens()
	r.IncReads()
	r.IncRenames()
	r.SetInodesLive(3)

	t.Equal(float64(2), t.counterValue(r, "memvfs_opens_total"))
	t.Equal(float64(1), t.counterValue(r, "memvfs_reads_total"))
	t.Equal(float64(1), t.counterValue(r, "memvfs_renames_total"))
}
