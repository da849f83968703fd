package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	intconfig "settlement/internal/config"
	intdb "settlement/internal/db"
	"settlement/internal/events"
	"settlement/internal/gateway"
	"settlement/internal/lock"
	"settlement/internal/services"
	"settlement/internal/utils"
	"settlement/internal/worker"
)

// app is the process wiring shared by serve and worker.
type app struct {
	env     intconfig.Env
	db      *sql.DB
	dialect intdb.Dialect
	closers []func() error
}

func bootstrap(ctx context.Context) (*app, error) {
	env, err := intconfig.LoadEnv()
	if err != nil {
		return nil, err
	}
	logger, err := utils.NewLogger(env.Env, env.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	utils.SetLogger(logger)

	conn, dialect, err := intconfig.OpenDB(ctx, env.DBDriver, env.DBDSN)
	if err != nil {
		return nil, err
	}
	a := &app{env: env, db: conn, dialect: dialect}
	a.closers = append(a.closers, conn.Close, func() error { _ = logger.Sync(); return nil })
	utils.L().Info("database connected", zap.String("driver", env.DBDriver))
	return a, nil
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *app) gateway() gateway.Gateway {
	var gw gateway.Gateway
	switch a.env.Gateway {
	case gateway.StripeName:
		gw = gateway.NewStripe(a.env.StripeSecretKey)
	default:
		gw = gateway.NewMock(gateway.MockConfig{
			Latency:           a.env.MockGatewayLatency,
			ChargeFailureRate: a.env.MockChargeFailureRate,
			RefundFailureRate: a.env.MockRefundFailureRate,
		})
	}
	return gateway.WithTimeout(gw, a.env.GatewayTimeout)
}

func (a *app) redisClient(db int) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     a.env.RedisAddr,
		Password: a.env.RedisPassword,
		DB:       db,
	})
	a.closers = append(a.closers, client.Close)
	return client
}

func (a *app) queueOpt() asynq.RedisClientOpt {
	return worker.RedisOpt(a.env.RedisAddr, a.env.RedisPassword, a.env.RedisQueueDB)
}

// settlement builds the coordinator with Redis locks and the receipt queue
// when REDIS_ADDR is set, and Kafka events when KAFKA_BROKERS is set.
func (a *app) settlement(ctx context.Context) services.SettlementService {
	svc := services.NewSettlementService(a.db, intdb.NewTxManager(a.db, a.dialect), a.gateway())
	svc.DefaultCurrency = a.env.DefaultCurrency

	if a.env.RedisAddr != "" {
		client := a.redisClient(a.env.RedisLockDB)
		if err := client.Ping(ctx).Err(); err != nil {
			utils.L().Warn("redis ping failed, locks will retry on use", zap.Error(err))
		}
		svc.Locks = lock.NewRedisLocker(client, a.env.LockTTL)

		queue := asynq.NewClient(a.queueOpt())
		a.closers = append(a.closers, queue.Close)
		svc.Notifier = worker.ReceiptQueue{Client: queue}
	} else {
		svc.Locks = lock.NewLocalLocker()
	}

	if brokers := a.env.KafkaBrokerList(); len(brokers) > 0 {
		producer := events.NewKafkaProducer(brokers, a.env.KafkaTopic)
		a.closers = append(a.closers, producer.Close)
		svc.Events = producer
	} else {
		svc.Events = events.NopPublisher{}
	}

	utils.L().Info("settlement wired",
		zap.String("gateway", svc.Gateway.Name()),
		zap.Bool("redis", a.env.RedisAddr != ""),
		zap.Int("kafka_brokers", len(a.env.KafkaBrokerList())),
	)
	return svc
}
