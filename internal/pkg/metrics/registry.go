package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registererMu sync.RWMutex
	registerer   prometheus.Registerer = prometheus.DefaultRegisterer
)

// SetRegisterer 替换 NewTrackerMetrics 使用的全局 Registerer，nil 恢复为默认值
func SetRegisterer(r prometheus.Registerer) {
	if r == nil {
		r = prometheus.DefaultRegisterer
	}
	registererMu.Lock()
	defer registererMu.Unlock()
	registerer = r
}

// GetRegisterer 返回当前的 Registerer
func GetRegisterer() prometheus.Registerer {
	registererMu.RLock()
	defer registererMu.RUnlock()
	return registerer
}

// WithRegisterer 临时替换 Registerer 执行 fn，结束后恢复
func WithRegisterer(r prometheus.Registerer, fn func()) {
	previous := GetRegisterer()
	SetRegisterer(r)
	defer SetRegisterer(previous)

	if fn != nil {
		fn()
	}
}
