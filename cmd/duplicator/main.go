package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/minhpham-dev/orderdup/config"
	"github.com/minhpham-dev/orderdup/pkg/audit"
	"github.com/minhpham-dev/orderdup/pkg/duplicator"
	"github.com/minhpham-dev/orderdup/pkg/duplicator/model"
	"github.com/minhpham-dev/orderdup/pkg/duplicator/repo"
	"github.com/minhpham-dev/orderdup/pkg/duplicator/rule"
	fixgateway "github.com/minhpham-dev/orderdup/pkg/gateway/fix"
	simgateway "github.com/minhpham-dev/orderdup/pkg/gateway/sim"
	postgres_wrapper "github.com/minhpham-dev/orderdup/pkg/infra/postgres"
	redis_wrapper "github.com/minhpham-dev/orderdup/pkg/infra/redis"
	kafkawrapper "github.com/minhpham-dev/orderdup/pkg/kafka_wrapper"
	"github.com/minhpham-dev/orderdup/pkg/logging"
	"github.com/minhpham-dev/orderdup/pkg/notify"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.Parse()

	logging.Init(logging.INFO)

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}

	configBytes, err := json.MarshalIndent(cfg, "", "   ")
	if err != nil {
		zap.S().Warnf("could not convert config to JSON: %v", err)
	} else {
		zap.S().Debugf("load config %s", string(configBytes))
	}

	go func() {
		http.ListenAndServe("localhost:6060", nil) // nolint
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	// order store: postgres when configured, in-memory otherwise
	var store duplicator.Store
	if cfg.OrdersDB != nil {
		db, err := postgres_wrapper.InitPostgres(cfg.OrdersDB)
		if err != nil {
			zap.S().Errorf("init db fail with err: %v", err)
			panic(err)
		}
		store = repo.NewRepo(db).Order()
	} else {
		store = duplicator.NewInMemoryStore()
	}

	// notifier: redis when configured
	var notifier duplicator.Notifier = duplicator.NopNotifier{}
	if cfg.Redis != nil {
		rdb, err := redis_wrapper.InitRedis(cfg.Redis)
		if err != nil {
			zap.S().Errorf("init redis fail with err: %v", err)
			panic(err)
		}
		notifier = notify.NewRedisNotifier(rdb, cfg.Notify.Channel)
	}

	// audit trail: kafka when configured
	var auditSink duplicator.AuditSink
	var producer *kafkawrapper.Producer
	if cfg.Kafka != nil {
		producer = kafkawrapper.NewProducer(kafkawrapper.ProducerConfig{
			Brokers: cfg.Kafka.Brokers,
		})
		auditSink = audit.NewKafkaSink(producer, cfg.Kafka.AuditTopic)
	}

	registry := duplicator.NewRegistry(duplicator.ConnectPolicy(cfg.ConnectPolicy))
	for _, gc := range cfg.EnabledGateways() {
		registry.Register(buildGateway(gc))
	}
	if err := registry.ConnectAll(ctx); err != nil {
		zap.S().Errorf("connect gateways fail with err: %v", err)
		panic(err)
	}

	ledger, err := duplicator.NewLedger(ctx, store, notifier)
	if err != nil {
		zap.S().Errorf("load ledger fail with err: %v", err)
		panic(err)
	}

	rules := []rule.Rule{&rule.BasicRule{}}
	if cfg.TickSizeFile != "" {
		tickRule, err := rule.NewTickSizeRuleFromFile(cfg.TickSizeFile)
		if err != nil {
			zap.S().Errorf("load tick size file fail with err: %v", err)
			panic(err)
		}
		rules = append(rules, tickRule)
	}

	dispatcher := duplicator.NewDispatcher(registry, cfg.DispatchTimeout(), rules...)

	// order intake: intents arrive on a kafka topic, one duplicated
	// order per message
	if cfg.Kafka != nil && cfg.Kafka.IntentTopic != "" {
		consumer, err := kafkawrapper.NewConsumerGroup(kafkawrapper.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			GroupID: cfg.Kafka.GroupID,
			Topic:   cfg.Kafka.IntentTopic,
		})
		if err != nil {
			zap.S().Errorf("init intent consumer fail with err: %v", err)
			panic(err)
		}
		go func() {
			defer consumer.Close() // nolint
			err := consumer.Run(ctx, func(ctx context.Context, msgs []kafkawrapper.Message) error {
				for _, msg := range msgs {
					placeIntent(ctx, dispatcher, ledger, msg.Value)
				}
				return nil
			})
			if err != nil && ctx.Err() == nil {
				zap.S().Errorf("intent consumer stopped with err: %v", err)
			}
		}()
	}

	reconciler := duplicator.NewReconciler(registry, ledger, notifier, auditSink, duplicator.ReconcilerConfig{
		HealthInterval:   cfg.HealthInterval(),
		QueueSize:        cfg.Ingestion.QueueSize,
		EnableShardQueue: cfg.Ingestion.EnableShardQueue,
		NumShards:        cfg.Ingestion.NumShards,
	})
	reconciler.Start(ctx)

	go ledger.RunCleaner(ctx, time.Hour, cfg.Retention())

	fmt.Println("Order duplicator started. Press Ctrl+C to exit.")
	<-sigs
	fmt.Println("Shutting down...")

	reconciler.Stop()
	registry.DisconnectAll()
	if producer != nil {
		producer.Close(context.Background()) // nolint
	}
	cancel()

	fmt.Println("Exited cleanly.")
}

// placeIntent fans one intent out to every healthy gateway and admits
// the result to the ledger. Failures are logged, never returned: a bad
// message must not stall the intake partition.
func placeIntent(ctx context.Context, dispatcher *duplicator.Dispatcher, ledger *duplicator.Ledger, payload []byte) {
	var intent model.OrderIntent
	if err := json.Unmarshal(payload, &intent); err != nil {
		zap.S().Warnw("discarding malformed order intent", "err", err)
		return
	}

	legResults, err := dispatcher.Place(ctx, &intent)
	if err != nil {
		zap.S().Errorw("order dispatch fail", "symbol", intent.Symbol, "err", err)
		return
	}

	order, err := ledger.Create(ctx, &intent, legResults)
	if err != nil {
		zap.S().Errorw("order admit fail", "symbol", intent.Symbol, "err", err)
		return
	}
	zap.S().Infow("order duplicated",
		"logical_id", order.LogicalID, "symbol", intent.Symbol, "legs", len(order.LegIDs))
}

func buildGateway(gc config.GatewayConfig) duplicator.Gateway {
	switch gc.Type {
	case "fix":
		return fixgateway.New(fixgateway.Config{
			Name:           gc.Name,
			ConfigFilepath: gc.FixConfigFile,
		})
	default:
		return simgateway.New(simgateway.Config{
			Name:        gc.Name,
			Latency:     time.Duration(gc.LatencyMs) * time.Millisecond,
			FailureRate: gc.FailureRate,
		})
	}
}
