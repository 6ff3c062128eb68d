// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// #nosec G404
package metrics

import (
	"io"
	"math/rand/v2"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T, m Metrics) map[string]*dto.MetricFamily {
	metricFamilies, err := m.(*prometheusMetrics).registry.Gather()
	require.NoError(t, err)

	families := make(map[string]*dto.MetricFamily)
	for _, mf := range metricFamilies {
		families[mf.GetName()] = mf
	}
	return families
}

func TestPromMetrics(t *testing.T) {
	m := NewPrometheus(log.NewLogger(log.DiscardHandler()))

	// 2 ways of accessing it - useful to avoid lookups
	count1 := m.GetOrCreateCountMeter("count1")
	m.GetOrCreateCountMeter("count2")
	countVect := m.GetOrCreateCountVecMeter("countVec1", []string{"zeroOrOne"})

	hist := m.GetOrCreateHistogramMeter("hist1", nil)
	gauge1 := m.GetOrCreateGaugeMeter("gauge1")
	gaugeVec := m.GetOrCreateGaugeVecMeter("gaugeVec1", []string{"zeroOrOne"})

	count1.Add(1)
	randCount2 := rand.N(100) + 1
	for range randCount2 {
		m.GetOrCreateCountMeter("count2").Add(1)
	}

	histTotal := 0
	for i := range rand.N(100) + 2 {
		zeroOrOne := i % 2
		hist.Observe(int64(i))
		m.GetOrCreateHistogramVecMeter("hist2", []string{"zeroOrOne"}, nil).
			ObserveWithLabels(int64(i), map[string]string{"zeroOrOne": strconv.Itoa(zeroOrOne)})
		histTotal += i
	}

	totalCountVec := 0
	randCountVec := rand.N(100) + 2
	for i := range randCountVec {
		zeroOrOne := i % 2
		countVect.AddWithLabel(int64(i), map[string]string{"zeroOrOne": strconv.Itoa(zeroOrOne)})
		totalCountVec += i
	}

	totalGaugeVec := 0
	randGaugeVec := rand.N(100) + 2
	for i := range randGaugeVec {
		zeroOrOne := i % 2
		gaugeVec.AddWithLabel(int64(i), map[string]string{"zeroOrOne": strconv.Itoa(zeroOrOne)})
		gauge1.Add(int64(i))
		totalGaugeVec += i
	}

	metrics := gather(t, m)

	require.Equal(t, float64(1), metrics["ethsim_count1"].Metric[0].GetCounter().GetValue())
	require.Equal(t, float64(randCount2), metrics["ethsim_count2"].Metric[0].GetCounter().GetValue())
	require.Equal(t, float64(histTotal), metrics["ethsim_hist1"].Metric[0].GetHistogram().GetSampleSum())

	sumHistVect := metrics["ethsim_hist2"].Metric[0].GetHistogram().GetSampleSum() +
		metrics["ethsim_hist2"].Metric[1].GetHistogram().GetSampleSum()
	require.Equal(t, float64(histTotal), sumHistVect)

	sumCountVec := metrics["ethsim_countVec1"].Metric[0].GetCounter().GetValue() +
		metrics["ethsim_countVec1"].Metric[1].GetCounter().GetValue()
	require.Equal(t, float64(totalCountVec), sumCountVec)

	require.Equal(t, float64(totalGaugeVec), metrics["ethsim_gauge1"].Metric[0].GetGauge().GetValue())
	sumGaugeVec := metrics["ethsim_gaugeVec1"].Metric[0].GetGauge().GetValue() +
		metrics["ethsim_gaugeVec1"].Metric[1].GetGauge().GetValue()
	require.Equal(t, float64(totalGaugeVec), sumGaugeVec)
}

func TestInstancesAreIsolated(t *testing.T) {
	logger := log.NewLogger(log.DiscardHandler())
	a, b := NewPrometheus(logger), NewPrometheus(logger)

	a.GetOrCreateCountMeter("blocks").Add(3)
	b.GetOrCreateCountMeter("blocks").Add(5)

	assert.Equal(t, float64(3), gather(t, a)["ethsim_blocks"].Metric[0].GetCounter().GetValue())
	assert.Equal(t, float64(5), gather(t, b)["ethsim_blocks"].Metric[0].GetCounter().GetValue())
}

func TestHandler(t *testing.T) {
	m := NewPrometheus(log.NewLogger(log.DiscardHandler()))
	m.GetOrCreateGaugeMeter("queue_depth").Set(7)

	rec := httptest.NewRecorder()
	m.GetOrCreateHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "ethsim_queue_depth 7")
}

func TestNoop(t *testing.T) {
	m := OrNoop(nil)
	for _, a := range []any{
		m.GetOrCreateGaugeMeter("g"),
		m.GetOrCreateGaugeVecMeter("g", nil),
		m.GetOrCreateCountMeter("c"),
		m.GetOrCreateCountVecMeter("c", nil),
		m.GetOrCreateHistogramMeter("h", nil),
		m.GetOrCreateHistogramVecMeter("h", nil, nil),
	} {
		require.IsType(t, noop{}, a)
	}
	assert.NotNil(t, m.GetOrCreateHandler())
}
