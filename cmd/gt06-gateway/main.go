package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gomodule/redigo/redis"
	log "github.com/sirupsen/logrus"

	kafka "github.com/segmentio/kafka-go"

	"github.com/fleetlink/gt06-gateway/internal/bus"
	"github.com/fleetlink/gt06-gateway/internal/config"
	"github.com/fleetlink/gt06-gateway/internal/gateway"
	"github.com/fleetlink/gt06-gateway/internal/session"
	"github.com/fleetlink/gt06-gateway/pkg/gt06/codec"
)

var Version = "0.1.0"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if level, err := log.ParseLevel(cfg.Log.Level); err == nil {
		log.SetLevel(level)
	}
	if cfg.Log.Path != "" {
		logFile, err := os.OpenFile(cfg.Log.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			log.SetOutput(logFile)
		} else {
			log.WithError(err).Warn("could not open log file, staying on stderr")
		}
	}

	log.Infof("starting gt06-gateway v%s", Version)
	log.Infof("  listen port: %d", cfg.Listen.Port)
	log.Infof("  redis: %s", cfg.Redis.Address)
	log.Infof("  kafka brokers: %v", cfg.Kafka.Brokers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutting down...")
		cancel()
	}()

	pool := &redis.Pool{
		MaxIdle:     cfg.Redis.PoolSize,
		MaxActive:   cfg.Redis.PoolSize,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", cfg.Redis.Address)
		},
	}
	defer pool.Close()

	registry := session.NewRedisRegistry(pool, cfg.Session.IdleTimeout(), cfg.Session.TouchMinInterval())

	writer := bus.NewKafkaWriter(cfg.Kafka.Brokers)
	defer writer.Close()
	publisher := bus.NewPublisher(ctx, writer, cfg.Publish.QueueCapacity, cfg.Publish.RetryMax)

	gwCfg := gateway.DefaultConfig()
	listenAddr := fmt.Sprintf(":%d", cfg.Listen.Port)
	srv := gateway.NewServer(gwCfg, listenAddr, registry, publisher)

	reader := bus.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.CommandTopic, cfg.Kafka.CommandGroupID)
	defer reader.Close()
	kafkaCommandConsumer(ctx, reader, registry, srv, publisher)

	reaper := gateway.NewReaper(registry, srv.ChannelTable(), cfg.Reaper.Interval(), cfg.Session.IdleTimeout())
	go reaper.Run(ctx)

	if err := srv.Serve(ctx); err != nil {
		log.WithError(err).Fatal("gateway server stopped")
	}
}

func kafkaCommandConsumer(ctx context.Context, reader *kafka.Reader, registry session.Registry, srv *gateway.Server, publisher *bus.Publisher) *bus.Consumer {
	lookup := gateway.SessionLookup{Registry: registry}
	sender := gateway.FrameSender{Table: srv.ChannelTable()}
	encoder := codec.NewEncoder()
	return bus.NewConsumer(ctx, reader, lookup, sender, encoder, publisher)
}
