package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordRun(t *testing.T) {
	before := testutil.ToFloat64(RunsTotal.WithLabelValues("partial"))

	RecordRun("partial", 0.25)

	assert.Equal(t, before+1, testutil.ToFloat64(RunsTotal.WithLabelValues("partial")))
}

func TestRecordAnnouncement(t *testing.T) {
	before := testutil.ToFloat64(AnnouncementsTotal.WithLabelValues("sink_update"))

	RecordAnnouncement("sink_update")
	RecordAnnouncement("sink_update")

	assert.Equal(t, before+2, testutil.ToFloat64(AnnouncementsTotal.WithLabelValues("sink_update")))
}

func TestRecordRejectedRun(t *testing.T) {
	before := testutil.ToFloat64(RejectedRunsTotal)

	RecordRejectedRun()

	assert.Equal(t, before+1, testutil.ToFloat64(RejectedRunsTotal))
}
