// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metrics

import "net/http"

// NewNoop returns the metrics service that discards everything.
func NewNoop() Metrics { return noop{} }

// noop serves as both the service and every meter it hands out.
type noop struct{}

func (noop) GetOrCreateCountMeter(string) CountMeter { return noop{} }
func (noop) GetOrCreateCountVecMeter(string, []string) CountVecMeter { return noop{} }
func (noop) GetOrCreateGaugeMeter(string) GaugeMeter { return noop{} }
func (noop) GetOrCreateGaugeVecMeter(string, []string) GaugeVecMeter { return noop{} }
func (noop) GetOrCreateHistogramMeter(string, []int64) HistogramMeter { return noop{} }
func (noop) GetOrCreateHistogramVecMeter(string, []string, []int64) HistogramVecMeter {
	return noop{}
}

func (noop) GetOrCreateHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "metrics disabled", http.StatusNotFound)
	})
}

func (noop) Add(int64) {}
func (noop) Set(int64) {}
func (noop) Observe(int64) {}
func (noop) AddWithLabel(int64, map[string]string) {}
func (noop) SetWithLabel(int64, map[string]string) {}
func (noop) ObserveWithLabels(int64, map[string]string) {}
