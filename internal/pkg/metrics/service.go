package metrics

import "sync/atomic"

const defaultServiceName = "doom-loot"

var serviceName atomic.Value

func init() {
	serviceName.Store(defaultServiceName)
}

// SetServiceName 设置进程名，写入 tracker_info 的 service 标签
func SetServiceName(name string) {
	if name == "" {
		name = defaultServiceName
	}
	serviceName.Store(name)
}

// GetServiceName 返回当前进程名
func GetServiceName() string {
	if v, ok := serviceName.Load().(string); ok && v != "" {
		return v
	}
	return defaultServiceName
}
