package background

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/LavaJover/shvark-mpesa-service/internal/config"
	"github.com/LavaJover/shvark-mpesa-service/internal/delivery/grpcapi"
	"github.com/LavaJover/shvark-mpesa-service/internal/domain"
	"github.com/LavaJover/shvark-mpesa-service/internal/usecase/transaction"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	healthCheckInterval = 10 * time.Second
	healthCheckTimeout  = 3 * time.Second
)

type BackgroundTasks struct {
	TransactionUsecase transaction.TransactionUsecase
	// Subscriber is nil when Kafka is disabled.
	Subscriber domain.SubscriberPort
	// Health is nil when no gRPC server runs.
	Health *health.Server

	Sweeper config.Sweeper
	Kafka   config.KafkaService
}

func NewBackgroundTasks(uc transaction.TransactionUsecase, sub domain.SubscriberPort, hs *health.Server, sweeper config.Sweeper, kafka config.KafkaService) *BackgroundTasks {
	return &BackgroundTasks{
		TransactionUsecase: uc,
		Subscriber:         sub,
		Health:             hs,
		Sweeper:            sweeper,
		Kafka:              kafka,
	}
}

func (bt *BackgroundTasks) StartAll(ctx context.Context) {
	if bt.Sweeper.Enabled {
		go bt.startStaleSweeper(ctx)
	}
	if bt.Subscriber != nil {
		go bt.startCallbackConsumer(ctx)
	}
	if bt.Health != nil {
		go bt.startHealthProbe(ctx)
	}
}

func (bt *BackgroundTasks) startStaleSweeper(ctx context.Context) {
	interval := bt.Sweeper.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			out, err := bt.TransactionUsecase.SweepStale(ctx)
			if err != nil {
				slog.Error("stale sweep failed", "error", err)
				continue
			}
			if out.Checked > 0 {
				slog.Info("stale sweep finished", "checked", out.Checked, "resolved", out.Resolved)
			}
		}
	}
}

func (bt *BackgroundTasks) startCallbackConsumer(ctx context.Context) {
	msgs, err := bt.Subscriber.Subscribe(ctx, bt.Kafka.CallbacksTopic, bt.Kafka.ConsumerGroup)
	if err != nil {
		slog.Error("failed to subscribe to callbacks", "topic", bt.Kafka.CallbacksTopic, "error", err)
		return
	}
	slog.Info("callback consumer started", "topic", bt.Kafka.CallbacksTopic, "group", bt.Kafka.ConsumerGroup)
	ConsumeCallbacks(ctx, bt.TransactionUsecase, msgs)
}

// ConsumeCallbacks reconciles every message of msgs until the channel closes
// or ctx is done. Undecodable and rejected messages are logged and skipped.
func ConsumeCallbacks(ctx context.Context, uc transaction.TransactionUsecase, msgs <-chan domain.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var payload domain.CallbackPayload
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				slog.Error("undecodable callback message", "key", string(msg.Key), "error", err)
				continue
			}
			out, err := uc.ReconcileCallback(ctx, payload)
			if err != nil {
				slog.Error("callback reconciliation failed",
					"transaction_id", payload.TransactionID,
					"third_party_reference", payload.ThirdPartyReference,
					"error", err,
				)
				continue
			}
			slog.Debug("callback consumed", "outcome", out.Outcome, "transaction_id", payload.TransactionID)
		}
	}
}

func (bt *BackgroundTasks) startHealthProbe(ctx context.Context) {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		bt.probe(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (bt *BackgroundTasks) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := bt.TransactionUsecase.Health(ctx); err != nil {
		slog.Warn("health probe failed", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	bt.Health.SetServingStatus("", status)
	bt.Health.SetServingStatus(grpcapi.ServiceName, status)
}
