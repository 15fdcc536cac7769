package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartAuditConsumer connects to RabbitMQ, declares the audit.recorded
// queue and appends each event to logs/audit.log as a single line. It
// runs a reconnect loop with capped backoff and keeps going through
// broker restarts; malformed messages are rejected without requeue so a
// bad payload cannot wedge the queue.
func StartAuditConsumer() error {
	url := brokerURL()

	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("audit-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumeAuditLoop(conn); err != nil {
			log.Printf("audit-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
		}
	}
}

func consumeAuditLoop(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("audit-consumer: set QoS failed: %v", err)
	}

	if _, err := ch.QueueDeclare(auditQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(auditQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleAuditMessage(d.Body); err != nil {
			log.Printf("audit-consumer: handle message failed: %v", err)
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleAuditMessage(body []byte) error {
	var ev AuditRecordedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join("logs", "audit.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	actor := "-"
	if ev.ActorID != nil {
		actor = fmt.Sprintf("%d", *ev.ActorID)
	}
	target := "-"
	if ev.TargetID != nil {
		target = fmt.Sprintf("%d", *ev.TargetID)
	}
	details := "{}"
	if len(ev.Details) > 0 {
		details = string(ev.Details)
	}

	line := fmt.Sprintf("[%s] %s | actor=%s | target=%s:%s | details=%s\n",
		ev.RecordedAt, ev.Action, actor, ev.TargetType, target, details)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
