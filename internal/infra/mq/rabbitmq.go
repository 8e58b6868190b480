package mq

import (
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/example/goshop/internal/config"
)

var (
	conn *amqp.Connection
	once sync.Once
)

// Init 初始化 RabbitMQ 连接，带上连接名方便在管理界面区分进程
func Init(cfg *config.RabbitMQConfig) *amqp.Connection {
	once.Do(func() {
		props := amqp.NewConnectionProperties()
		props.SetClientConnectionName("goshop")
		c, err := amqp.DialConfig(cfg.URL, amqp.Config{Properties: props})
		if err != nil {
			log.Fatalf("failed to connect rabbitmq: %v", err)
		}
		conn = c
	})
	return conn
}

// Conn 获取 MQ 连接
func Conn() *amqp.Connection {
	return conn
}
