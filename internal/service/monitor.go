package service

import (
	"sync"
	"time"
)

// Monitor 监控服务，用于统计错误和关键链路指标
type Monitor struct {
	mu sync.RWMutex

	// 错误统计
	RedisErrors   int64
	MQErrors      int64
	DBErrors      int64
	GatewayErrors int64

	// 下单链路
	CheckoutRequests  int64
	CheckoutSuccess   int64
	CheckoutConflicts int64

	// 支付回调
	WebhookEvents     int64
	WebhookDuplicates int64
	WebhookRejected   int64

	// worker
	WorkerProcessed int64
	WorkerFailed    int64

	// 时间统计
	LastGatewayError time.Time
	LastCheckoutTime time.Time
	LastWebhookTime  time.Time
	LastWorkerTime   time.Time
}

var globalMonitor = &Monitor{}

// GetMonitor 获取全局监控实例
func GetMonitor() *Monitor {
	return globalMonitor
}

// RecordRedisError 记录 Redis 错误
func (m *Monitor) RecordRedisError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RedisErrors++
}

// RecordMQError 记录 MQ 错误
func (m *Monitor) RecordMQError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MQErrors++
}

// RecordDBError 记录数据库错误
func (m *Monitor) RecordDBError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DBErrors++
}

// RecordGatewayError 记录支付网关错误
func (m *Monitor) RecordGatewayError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GatewayErrors++
	m.LastGatewayError = time.Now()
}

// RecordCheckoutRequest 记录下单请求
func (m *Monitor) RecordCheckoutRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CheckoutRequests++
	m.LastCheckoutTime = time.Now()
}

// RecordCheckoutSuccess 记录下单成功
func (m *Monitor) RecordCheckoutSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CheckoutSuccess++
}

// RecordCheckoutConflict 记录库存/限次冲突导致的下单失败
func (m *Monitor) RecordCheckoutConflict() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CheckoutConflicts++
}

// RecordWebhookEvent 记录收到的回调事件
func (m *Monitor) RecordWebhookEvent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WebhookEvents++
	m.LastWebhookTime = time.Now()
}

// RecordWebhookDuplicate 记录重复投递的回调
func (m *Monitor) RecordWebhookDuplicate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WebhookDuplicates++
}

// RecordWebhookRejected 记录签名校验失败的回调
func (m *Monitor) RecordWebhookRejected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WebhookRejected++
}

// RecordWorkerProcessed 记录 worker 处理成功
func (m *Monitor) RecordWorkerProcessed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WorkerProcessed++
	m.LastWorkerTime = time.Now()
}

// RecordWorkerFailed 记录 worker 处理失败
func (m *Monitor) RecordWorkerFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WorkerFailed++
}

// GetStats 获取统计信息
func (m *Monitor) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	successRate := float64(0)
	if m.CheckoutRequests > 0 {
		successRate = float64(m.CheckoutSuccess) / float64(m.CheckoutRequests) * 100
	}

	return map[string]interface{}{
		"errors": map[string]interface{}{
			"redis":   m.RedisErrors,
			"mq":      m.MQErrors,
			"db":      m.DBErrors,
			"gateway": m.GatewayErrors,
		},
		"checkout": map[string]interface{}{
			"requests":     m.CheckoutRequests,
			"success":      m.CheckoutSuccess,
			"conflicts":    m.CheckoutConflicts,
			"success_rate": successRate,
		},
		"webhook": map[string]interface{}{
			"events":     m.WebhookEvents,
			"duplicates": m.WebhookDuplicates,
			"rejected":   m.WebhookRejected,
		},
		"worker": map[string]interface{}{
			"processed": m.WorkerProcessed,
			"failed":    m.WorkerFailed,
		},
		"last_events": map[string]interface{}{
			"gateway_error": m.LastGatewayError,
			"last_checkout": m.LastCheckoutTime,
			"last_webhook":  m.LastWebhookTime,
			"last_worker":   m.LastWorkerTime,
		},
	}
}

// Reset 重置统计（用于测试或定期清理）
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RedisErrors = 0
	m.MQErrors = 0
	m.DBErrors = 0
	m.GatewayErrors = 0
	m.CheckoutRequests = 0
	m.CheckoutSuccess = 0
	m.CheckoutConflicts = 0
	m.WebhookEvents = 0
	m.WebhookDuplicates = 0
	m.WebhookRejected = 0
	m.WorkerProcessed = 0
	m.WorkerFailed = 0
}
