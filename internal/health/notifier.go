package health

import (
	"sync"

	"github.com/Xingyelan/Vega-Registry/internal/models"
)

// Notifier 告警订阅分发器
// 投递为尽力而为：不保证顺序重放，订阅者缓冲满时丢弃而不是阻塞监控循环
type Notifier struct {
	mu      sync.RWMutex
	subs    map[chan models.HealthAlert]struct{}
	bufSize int
	closed  bool
}

// NewNotifier 创建分发器
func NewNotifier(bufSize int) *Notifier {
	if bufSize <= 0 {
		bufSize = 16
	}
	return &Notifier{
		subs:    make(map[chan models.HealthAlert]struct{}),
		bufSize: bufSize,
	}
}

// Subscribe 注册订阅者，返回只读告警通道
func (n *Notifier) Subscribe() <-chan models.HealthAlert {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan models.HealthAlert, n.bufSize)
	if n.closed {
		close(ch)
		return ch
	}
	n.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe 注销订阅者并关闭其通道
func (n *Notifier) Unsubscribe(ch <-chan models.HealthAlert) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for sub := range n.subs {
		if sub == ch {
			delete(n.subs, sub)
			close(sub)
			return
		}
	}
}

// Publish 向所有订阅者投递告警
// 通道已满时直接丢弃该订阅者的这条告警
func (n *Notifier) Publish(alert models.HealthAlert) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		return
	}
	for sub := range n.subs {
		select {
		case sub <- alert:
		default:
			// 订阅者消费不及时，丢弃
		}
	}
}

// Close 关闭分发器和所有订阅通道
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	n.closed = true
	for sub := range n.subs {
		close(sub)
		delete(n.subs, sub)
	}
}
