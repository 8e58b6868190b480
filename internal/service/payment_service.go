package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	radix "github.com/mediocregopher/radix/v3"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/goshop/internal/config"
	"github.com/example/goshop/internal/datamodels/order"
	"github.com/example/goshop/internal/datamodels/payment"
	"github.com/example/goshop/internal/repository"
)

const (
	paymentIntentQueue     = "payment_intent_queue"
	redisWebhookEventKey   = "payment:event:%s"   // eventID
	redisClientSecretKey   = "payment:secret:%d"  // orderID
	webhookEventTTLSeconds = 86400                // 事件去重标记保留 24 小时
	clientSecretTTLSeconds = 3600
)

// 回调事件类型
const (
	eventPaymentSucceeded = "payment_intent.succeeded"
	eventPaymentFailed    = "payment_intent.payment_failed"
)

// EventDedup 回调事件去重，MarkProcessed 返回是否为首次处理。
// 处理失败后必须调用 Clear 撤销标记，否则网关的重试会被当作重复投递丢弃。
type EventDedup interface {
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
	Clear(ctx context.Context, eventID string) error
}

type redisEventDedup struct {
	client radix.Client
}

// NewRedisEventDedup 基于 Redis SET NX 的事件去重
func NewRedisEventDedup(client radix.Client) EventDedup {
	return &redisEventDedup{client: client}
}

func (d *redisEventDedup) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	key := fmt.Sprintf(redisWebhookEventKey, eventID)
	var resp string
	if err := d.client.Do(radix.Cmd(&resp, "SET", key, "1", "NX", "EX",
		strconv.Itoa(webhookEventTTLSeconds))); err != nil {
		return false, err
	}
	return resp == "OK", nil
}

func (d *redisEventDedup) Clear(ctx context.Context, eventID string) error {
	key := fmt.Sprintf(redisWebhookEventKey, eventID)
	return d.client.Do(radix.Cmd(nil, "DEL", key))
}

// PaymentIntentResult 网关返回的支付意向
type PaymentIntentResult struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
	PublicKey    string `json:"public_key"`
}

// PaymentService 支付网关适配层：
// 创建支付意向（金额转最小货币单位、订单号随 metadata 透传）、
// 处理签名回调（幂等地把订单推进到 PAID）、
// 以及对 pending 支付单的对账补投。
type PaymentService struct {
	cfg      *config.StripeConfig
	txm      repository.TxManager
	orders   order.Repository
	payments payment.Repository
	dedup    EventDedup
	redis    radix.Client
	mqConn   *amqp.Connection
	httpCli  *http.Client
}

// NewPaymentService 创建支付服务。redis 与 mqConn 允许为 nil（测试场景）。
func NewPaymentService(
	cfg *config.StripeConfig,
	txm repository.TxManager,
	orders order.Repository,
	payments payment.Repository,
	dedup EventDedup,
	redisClient radix.Client,
	mqConn *amqp.Connection,
) *PaymentService {
	return &PaymentService{
		cfg:      cfg,
		txm:      txm,
		orders:   orders,
		payments: payments,
		dedup:    dedup,
		redis:    redisClient,
		mqConn:   mqConn,
		httpCli:  &http.Client{Timeout: cfg.Timeout()},
	}
}

// MinorUnits 主单位金额转最小货币单位（分），round(amount × 100)
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// PublishIntentRequest 将支付意向请求投递到 MQ，由 payment-worker 消费
func (s *PaymentService) PublishIntentRequest(ctx context.Context, msg *PaymentIntentMessage) error {
	if s.mqConn == nil {
		return errors.New("mq connection not configured")
	}
	ch, err := s.mqConn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if _, err = ch.QueueDeclare(paymentIntentQueue, true, false, false, false, nil); err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(
		ctx,
		"",
		paymentIntentQueue,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}

// IntentQueue 队列名，worker 侧声明消费时使用
func IntentQueue() string {
	return paymentIntentQueue
}

// CreatePaymentIntent 调用网关创建支付意向。
// 金额按最小货币单位传递，订单号写入 metadata 供回调对账，
// 幂等键保证网关侧不会因重试产生重复意向。
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, o *order.Order, p *payment.Payment) (*PaymentIntentResult, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(MinorUnits(p.Amount), 10))
	form.Set("currency", s.cfg.Currency)
	form.Set("metadata[orderId]", strconv.FormatInt(o.ID, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.cfg.BaseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := s.httpCli.Do(req)
	if err != nil {
		GetMonitor().RecordGatewayError()
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		GetMonitor().RecordGatewayError()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Printf("payment gateway returned %d for order %d: %s", resp.StatusCode, o.ID, body)
		return nil, fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var out struct {
		ID           string `json:"id"`
		ClientSecret string `json:"client_secret"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		GetMonitor().RecordGatewayError()
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	return &PaymentIntentResult{
		IntentID:     out.ID,
		ClientSecret: out.ClientSecret,
		PublicKey:    s.cfg.PublicKey,
	}, nil
}

// FulfillIntent worker 消费消息后的完整处理：
// 调网关换取 client secret 并回写支付单。已有 secret 的支付单直接跳过。
func (s *PaymentService) FulfillIntent(ctx context.Context, msg *PaymentIntentMessage) error {
	p, err := s.payments.GetByOrderID(ctx, msg.OrderID)
	if err != nil {
		return err
	}
	if p.ClientSecret != "" || p.Status != payment.StatusPending {
		return nil
	}
	o, err := s.orders.GetByID(ctx, msg.OrderID)
	if err != nil {
		return err
	}

	result, err := s.CreatePaymentIntent(ctx, o, p)
	if err != nil {
		return err
	}

	p.ProviderIntentID = result.IntentID
	p.ClientSecret = result.ClientSecret
	if err := s.payments.Save(ctx, p); err != nil {
		return err
	}
	s.cacheClientSecret(o.ID, result.ClientSecret)
	return nil
}

func (s *PaymentService) cacheClientSecret(orderID int64, secret string) {
	if s.redis == nil || secret == "" {
		return
	}
	key := fmt.Sprintf(redisClientSecretKey, orderID)
	if err := s.redis.Do(radix.Cmd(nil, "SETEX", key,
		strconv.Itoa(clientSecretTTLSeconds), secret)); err != nil {
		GetMonitor().RecordRedisError()
	}
}

// webhookEvent 网关回调事件体（只取用到的字段）
type webhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// HandleWebhook 处理网关回调：先验签再解析。
// 重复投递（同一事件 ID，或订单已是 PAID）按成功处理，不产生二次副作用。
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	if err := VerifyWebhookSignature(payload, sigHeader, s.cfg.WebhookSecret, time.Now()); err != nil {
		GetMonitor().RecordWebhookRejected()
		log.Printf("webhook signature verification failed: %v", err)
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	GetMonitor().RecordWebhookEvent()

	var ev webhookEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("解析回调事件失败: %w", err)
	}

	marked := false
	if s.dedup != nil && ev.ID != "" {
		first, err := s.dedup.MarkProcessed(ctx, ev.ID)
		if err != nil {
			// Redis 故障时不拦截事件，靠订单状态机兜底幂等
			GetMonitor().RecordRedisError()
			log.Printf("webhook dedup unavailable for event %s: %v", ev.ID, err)
		} else if !first {
			GetMonitor().RecordWebhookDuplicate()
			return nil
		} else {
			marked = true
		}
	}

	var applyErr error
	switch ev.Type {
	case eventPaymentSucceeded:
		applyErr = s.applyPaymentSucceeded(ctx, &ev)
	case eventPaymentFailed:
		applyErr = s.applyPaymentFailed(ctx, &ev)
	default:
		// 未知事件类型直接忽略
		return nil
	}

	// 处理失败时撤销去重标记，网关的重试才能重新进来
	if applyErr != nil && marked {
		if err := s.dedup.Clear(ctx, ev.ID); err != nil {
			GetMonitor().RecordRedisError()
			log.Printf("webhook dedup clear failed for event %s: %v", ev.ID, err)
		}
	}
	return applyErr
}

func orderIDFromEvent(ev *webhookEvent) (int64, bool) {
	raw, ok := ev.Data.Object.Metadata["orderId"]
	if !ok || raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (s *PaymentService) applyPaymentSucceeded(ctx context.Context, ev *webhookEvent) error {
	orderID, ok := orderIDFromEvent(ev)
	if !ok {
		log.Printf("webhook event %s has no usable orderId metadata", ev.ID)
		return nil
	}

	return s.txm.WithTransaction(ctx, func(tx *gorm.DB) error {
		o, err := s.orders.GetByIDForUpdate(ctx, tx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("webhook for unknown order %d ignored", orderID)
				return nil
			}
			return err
		}

		if err := o.MarkAsPaid(); err != nil {
			// 重复投递会再次打到已 PAID 的订单，按无操作处理
			if errors.Is(err, order.ErrNotNew) {
				GetMonitor().RecordWebhookDuplicate()
				return nil
			}
			return err
		}
		if err := s.orders.SaveTx(ctx, tx, o); err != nil {
			return err
		}

		p, err := s.payments.GetByOrderIDForUpdate(ctx, tx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		p.Status = payment.StatusSucceeded
		if ev.Data.Object.ID != "" {
			p.ProviderIntentID = ev.Data.Object.ID
		}
		return s.payments.SaveTx(ctx, tx, p)
	})
}

func (s *PaymentService) applyPaymentFailed(ctx context.Context, ev *webhookEvent) error {
	orderID, ok := orderIDFromEvent(ev)
	if !ok {
		return nil
	}

	// 订单保持 NEW，允许用户重新发起支付
	return s.txm.WithTransaction(ctx, func(tx *gorm.DB) error {
		p, err := s.payments.GetByOrderIDForUpdate(ctx, tx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if p.Status != payment.StatusPending {
			return nil
		}
		p.Status = payment.StatusFailed
		return s.payments.SaveTx(ctx, tx, p)
	})
}

// GetPaymentForOrder 查询订单的支付单，带归属校验，前端轮询 client secret 用
func (s *PaymentService) GetPaymentForOrder(ctx context.Context, userID, orderID int64, isAdmin bool) (*payment.Payment, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && o.UserID != userID {
		return nil, ErrUnauthorized
	}
	return s.payments.GetByOrderID(ctx, orderID)
}

// Reconcile 对账：找出长时间停留在 pending 且没有 client secret 的
// 支付单，重新投递意向请求。返回补投数量。
func (s *PaymentService) Reconcile(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	list, err := s.payments.ListPendingMissingSecret(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}
	requeued := 0
	for _, p := range list {
		msg := &PaymentIntentMessage{OrderID: p.OrderID, PaymentID: p.ID}
		if err := s.PublishIntentRequest(ctx, msg); err != nil {
			GetMonitor().RecordMQError()
			log.Printf("reconcile: requeue payment %d failed: %v", p.ID, err)
			continue
		}
		requeued++
	}
	return requeued, nil
}
