package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// RequestCounter API 请求计数器
// 总量与错误数用原子计数，QPS 基于双时间窗口滑动估算
type RequestCounter struct {
	totalRequests int64
	errorCount    int64
	startedAt     time.Time

	windowMutex    sync.RWMutex
	currentWindow  *timeWindow
	previousWindow *timeWindow
	windowDuration time.Duration
}

// timeWindow 时间窗口
type timeWindow struct {
	count     int64
	startTime time.Time
}

// NewRequestCounter 创建请求计数器
func NewRequestCounter(windowDuration time.Duration) *RequestCounter {
	if windowDuration == 0 {
		windowDuration = 60 * time.Second
	}

	counter := &RequestCounter{
		startedAt:      time.Now(),
		windowDuration: windowDuration,
		currentWindow: &timeWindow{
			startTime: time.Now(),
		},
		previousWindow: &timeWindow{
			startTime: time.Now().Add(-windowDuration),
		},
	}

	go counter.rotateWindows()

	return counter
}

// Increment 记录一次请求
func (rc *RequestCounter) Increment() {
	atomic.AddInt64(&rc.totalRequests, 1)

	rc.windowMutex.Lock()
	rc.currentWindow.count++
	rc.windowMutex.Unlock()
}

// IncrementError 记录一次服务端错误响应
func (rc *RequestCounter) IncrementError() {
	atomic.AddInt64(&rc.errorCount, 1)
}

// GetTotal 获取总请求数
func (rc *RequestCounter) GetTotal() int64 {
	return atomic.LoadInt64(&rc.totalRequests)
}

// GetErrorCount 获取服务端错误响应数
func (rc *RequestCounter) GetErrorCount() int64 {
	return atomic.LoadInt64(&rc.errorCount)
}

// GetQPS 获取当前 QPS（每秒请求数）
// 当前窗口时间不足一个完整周期时，按剩余权重混入上一窗口的数据
func (rc *RequestCounter) GetQPS() float64 {
	rc.windowMutex.RLock()
	defer rc.windowMutex.RUnlock()

	now := time.Now()

	currentElapsed := now.Sub(rc.currentWindow.startTime).Seconds()
	if currentElapsed == 0 {
		currentElapsed = 1 // 避免除零
	}

	currentQPS := float64(rc.currentWindow.count) / currentElapsed

	if currentElapsed < rc.windowDuration.Seconds() {
		prevWeight := (rc.windowDuration.Seconds() - currentElapsed) / rc.windowDuration.Seconds()
		prevQPS := float64(rc.previousWindow.count) / rc.windowDuration.Seconds()

		return currentQPS*(1-prevWeight) + prevQPS*prevWeight
	}

	return currentQPS
}

// rotateWindows 定期滚动时间窗口
func (rc *RequestCounter) rotateWindows() {
	ticker := time.NewTicker(rc.windowDuration)
	defer ticker.Stop()

	for range ticker.C {
		rc.windowMutex.Lock()

		rc.previousWindow = rc.currentWindow
		rc.currentWindow = &timeWindow{
			startTime: time.Now(),
			count:     0,
		}

		rc.windowMutex.Unlock()
	}
}

// GetStats 获取统计信息快照
func (rc *RequestCounter) GetStats() RequestStats {
	return RequestStats{
		Total:         rc.GetTotal(),
		Errors:        rc.GetErrorCount(),
		CurrentQPS:    rc.GetQPS(),
		UptimeSeconds: int64(time.Since(rc.startedAt).Seconds()),
	}
}

// RequestStats 请求统计信息
type RequestStats struct {
	Total         int64   `json:"total"`
	Errors        int64   `json:"errors"`
	CurrentQPS    float64 `json:"current_qps"`
	UptimeSeconds int64   `json:"uptime_seconds"`
}
