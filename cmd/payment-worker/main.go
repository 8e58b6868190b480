package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/example/goshop/internal/config"
	"github.com/example/goshop/internal/infra/mq"
	"github.com/example/goshop/internal/infra/redis"
	"github.com/example/goshop/internal/repository/mysql"
	"github.com/example/goshop/internal/service"
)

const (
	// reconcileInterval 对账周期
	reconcileInterval = time.Minute
	// reconcileAge 支付单创建超过该时长仍无 client secret 才补投
	reconcileAge = 2 * time.Minute
	// reconcileBatch 每轮补投上限
	reconcileBatch = 50
)

func main() {
	cfg := config.Load()

	db := mysql.Init(&cfg.MySQL)
	mqConn := mq.Init(&cfg.RabbitMQ)
	redisClient := redis.Init(&cfg.Redis)

	txm := mysql.NewTxManager(db)
	orderRepo := mysql.NewOrderRepository(db)
	paymentRepo := mysql.NewPaymentRepository(db)

	paymentSvc := service.NewPaymentService(&cfg.Stripe, txm, orderRepo, paymentRepo,
		service.NewRedisEventDedup(redisClient), redisClient, mqConn)

	ch, err := mqConn.Channel()
	if err != nil {
		log.Fatalf("failed to open channel: %v", err)
	}
	defer ch.Close()

	if _, err = ch.QueueDeclare(service.IntentQueue(), true, false, false, false, nil); err != nil {
		log.Fatalf("failed to declare queue: %v", err)
	}

	// 手动确认模式（auto-ack=false）
	msgs, err := ch.Consume(service.IntentQueue(), "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("failed to consume: %v", err)
	}

	// 对账兜底：网关调用失败的消息不原地重投（避免热循环），
	// 由定时对账重新入队。
	go reconcileLoop(paymentSvc)

	log.Println("payment worker started, waiting for messages...")

	for d := range msgs {
		var m service.PaymentIntentMessage
		if err := json.Unmarshal(d.Body, &m); err != nil {
			log.Printf("invalid message: %v", err)
			// 消息格式错误，拒绝并丢弃
			_ = d.Nack(false, false)
			continue
		}
		handleMessage(paymentSvc, &m, d)
	}
}

func handleMessage(svc *service.PaymentService, m *service.PaymentIntentMessage, d amqp.Delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := svc.FulfillIntent(ctx, m); err != nil {
		service.GetMonitor().RecordWorkerFailed()
		if errors.Is(err, service.ErrGatewayUnavailable) {
			log.Printf("gateway unavailable for order %d, leaving payment for reconciliation: %v", m.OrderID, err)
		} else {
			log.Printf("fulfill intent failed for order %d: %v", m.OrderID, err)
		}
		_ = d.Nack(false, false)
		return
	}

	service.GetMonitor().RecordWorkerProcessed()
	_ = d.Ack(false)
}

func reconcileLoop(svc *service.PaymentService) {
	ticker := time.NewTicker(reconcileInterval)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		n, err := svc.Reconcile(ctx, reconcileAge, reconcileBatch)
		cancel()
		if err != nil {
			log.Printf("reconcile failed: %v", err)
			continue
		}
		if n > 0 {
			log.Printf("reconcile requeued %d pending payments", n)
		}
	}
}
