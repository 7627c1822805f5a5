package main

import (
	"context"
	"encoding/json"
	"flag"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/minhpham-dev/orderdup/config"
	"github.com/minhpham-dev/orderdup/pkg/audit"
	"github.com/minhpham-dev/orderdup/pkg/duplicator/repo"
	postgres_wrapper "github.com/minhpham-dev/orderdup/pkg/infra/postgres"
	kafkawrapper "github.com/minhpham-dev/orderdup/pkg/kafka_wrapper"
	"github.com/minhpham-dev/orderdup/pkg/logging"
	"github.com/minhpham-dev/orderdup/pkg/worker"
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

	if cfg.Kafka == nil {
		panic("audit worker requires kafka config")
	}

	ctx := context.Background()

	// init db
	db, err := postgres_wrapper.InitPostgres(cfg.OrdersDB)
	if err != nil {
		zap.S().Errorf("init db fail with err: %v", err)
		panic(err)
	}

	// init repo
	sqlRepo := repo.NewRepo(db)

	topic := cfg.Kafka.AuditTopic
	if topic == "" {
		topic = audit.DefaultTopic
	}
	consumer, err := kafkawrapper.NewConsumerGroup(kafkawrapper.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topic:   topic,
	})
	if err != nil {
		zap.S().Errorf("init consumer fail with err: %v", err)
		panic(err)
	}

	w := worker.NewWorker(sqlRepo)
	if err := w.StartConsumer(ctx, consumer); err != nil {
		zap.S().Errorf("consumer stopped with err: %v", err)
		panic(err)
	}
}
