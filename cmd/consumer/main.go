package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/example/uniride/internal/kvstore"
	"github.com/example/uniride/internal/leaderboard"
	"github.com/example/uniride/internal/models"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_consumed_total",
		Help: "Total ride events consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_invalid_total",
		Help: "Total invalid messages received",
	})
	eventsByType = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consumer_ride_events_total",
		Help: "Ride events consumed by type",
	}, []string{"type"})
	snapshotRefreshes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_snapshot_refreshes_total",
		Help: "Successful leaderboard snapshot refreshes",
	})
	snapshotErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_snapshot_errors_total",
		Help: "Failed leaderboard snapshot refreshes",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, eventsByType, snapshotRefreshes, snapshotErrors)
}

func main() {
	// allow some flags for local runs
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.Parse()

	brokersEnv := os.Getenv("KAFKA_BROKERS")
	if brokersEnv == "" {
		brokersEnv = os.Getenv("KAFKA_BROKER")
	}
	brokers := []string{}
	if brokersEnv != "" {
		for _, b := range strings.Split(brokersEnv, ",") {
			if s := strings.TrimSpace(b); s != "" {
				brokers = append(brokers, s)
			}
		}
	} else {
		brokers = []string{"localhost:9092"}
	}

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "ride-events"
	}
	group := os.Getenv("KAFKA_GROUP")
	if group == "" {
		group = "uniride-consumer"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	kv := kvstore.NewRedisKV(redisAddr, os.Getenv("REDIS_PASSWORD"))
	board := leaderboard.NewService(kv, 50, 0)

	// start metrics and health server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			// readiness: check redis connectivity
			if err := kv.Ping(r.Context()); err != nil {
				http.Error(w, "redis not ready", 503)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		log.Printf("metrics/health listening on %s", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, GroupID: group, MinBytes: 10e3, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = kv.Close()
	}()

	log.Printf("consumer listening topic=%s brokers=%v group=%s", topic, brokers, group)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("shutting down consumer")
				return
			}
			log.Printf("kafka read error: %v; backing off %s", err, backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		// reset backoff on success
		backoff = time.Second

		msgsConsumed.Inc()

		var ev models.RideEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			msgsInvalid.Inc()
			log.Printf("invalid message: %v", err)
			continue
		}
		eventsByType.WithLabelValues(ev.Type).Inc()

		// Only rating events move the board.
		if ev.Type != models.EventRideRated {
			continue
		}
		if err := refreshWithRetry(ctx, board, 3, 200*time.Millisecond); err != nil {
			snapshotErrors.Inc()
			log.Printf("snapshot refresh failed for ride=%s: %v", ev.RideID, err)
			continue
		}
		snapshotRefreshes.Inc()
	}
}

// Refresher is the small subset of leaderboard operations we need for
// tests and production.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// refreshWithRetry recomputes the snapshot with retry/backoff.
func refreshWithRetry(ctx context.Context, b Refresher, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = b.Refresh(ctx); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return err
}
