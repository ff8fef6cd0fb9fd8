package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Recorders(t *testing.T) {
	m := New()
	m.RecordCSG("sphere", "insert", 100)
	m.RecordCSG("sphere", "insert", 20)
	m.RecordCSG("rect", "remove", 0)
	m.RecordMelt(33)
	m.RecordCast(5 * time.Millisecond)
	m.AssetMiss()
	m.AssetHit()
	m.AssetHit()
	m.SetOwnedSprites(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.csgOps.WithLabelValues("sphere", "insert")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.csgOps.WithLabelValues("rect", "remove")))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.voxelsModified))
	assert.Equal(t, 33.0, testutil.ToFloat64(m.meltedVoxels))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.renderCasts))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.assetHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.assetMisses))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ownedSprites))
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	a, b := New(), New()
	a.RecordMelt(5)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.meltedVoxels), "реестры движков независимы")
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RecordCSG("hull", "insert", 7)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `voxworld_csg_operations_total{op="insert",shape="hull"} 1`), body)
	assert.True(t, strings.Contains(body, "voxworld_voxels_modified_total 7"), body)
}

func TestProcessSampler(t *testing.T) {
	m := New()
	s, err := NewProcessSampler(m)
	require.NoError(t, err)
	require.NoError(t, s.Sample())
	assert.Greater(t, testutil.ToFloat64(m.residentBytes), 0.0, "RSS процесса должна быть положительной")
	assert.NotEmpty(t, s.Uptime())

	s.Start(time.Millisecond)
	s.Stop()
	s.Stop()
}
