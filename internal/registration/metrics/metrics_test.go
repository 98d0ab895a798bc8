package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementCreated()
	m.IncrementCreated()
	m.IncrementValidationFailure("team_leader_email")
	m.IncrementDuplicate()
	m.IncrementStorageFailure("create")
	m.ObserveExport(time.Now(), 12)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RegistrationsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationFailures.WithLabelValues("team_leader_email")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DuplicateConflicts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StorageFailures.WithLabelValues("create")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.ExportRows))
}

func TestNewWithSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
