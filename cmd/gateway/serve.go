package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/cobra"

	"github.com/relaygate/gateway/auth"
	"github.com/relaygate/gateway/health"
	"github.com/relaygate/gateway/httpapi"
	"github.com/relaygate/gateway/httpresp"
	"github.com/relaygate/gateway/imageupload"
	"github.com/relaygate/gateway/internal/rabbitmq"
	"github.com/relaygate/gateway/listener"
	"github.com/relaygate/gateway/metrics"
	"github.com/relaygate/gateway/middleware"
	"github.com/relaygate/gateway/registry"
	"github.com/relaygate/gateway/router"
)

// consumerAdapter narrows *rabbitmq.Consumer to listener.Consumer: the
// underlying Subscribe methods are structurally identical, but Go requires
// an exact signature match for interface satisfaction, and rabbitmq.Consumer
// declares its handler parameter as the named MessageHandler type.
type consumerAdapter struct {
	consumer *rabbitmq.Consumer
}

func (a consumerAdapter) Subscribe(ctx context.Context, queue string, handler func(ctx context.Context, delivery amqp.Delivery) error) error {
	return a.consumer.Subscribe(ctx, queue, handler)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger(cfg.Logging)

	instanceID := cfg.Server.InstanceID
	if instanceID == "" {
		instanceID = uuid.New().String()
	}
	replyQueue := cfg.Broker.ReplyQueue
	if replyQueue == "" {
		replyQueue = fmt.Sprintf("gateway.%s.reply", instanceID)
	}

	reg := registry.New()
	defer reg.Close()

	verifier := auth.NewVerifier(cfg.JWT.Secret)
	routeTable := router.NewTable(defaultRoutes)
	healthRegistry := health.NewRegistry()

	var bridge *httpapi.Bridge
	var brokerListener *listener.Listener
	var connManager *rabbitmq.ConnectionManager
	var channelPool *rabbitmq.ChannelPool

	if cfg.Broker.Enabled {
		connManager = rabbitmq.NewConnectionManager(cfg.Broker.URL, rabbitmq.WithConnectionLogger(logger))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := connManager.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to broker: %w", err)
		}

		var err error
		channelPool, err = rabbitmq.NewChannelPool(connManager)
		if err != nil {
			return fmt.Errorf("failed to create channel pool: %w", err)
		}

		topology := rabbitmq.NewTopologyManager(channelPool)
		if err := topology.DeclareExchange(ctx, rabbitmq.ExchangeDeclaration{
			Name: cfg.Broker.ServicesExchange, Type: "direct", Durable: true,
		}); err != nil {
			return fmt.Errorf("failed to declare services exchange: %w", err)
		}
		if _, err := topology.DeclareQueue(ctx, rabbitmq.QueueDeclaration{
			Name: replyQueue, Durable: false, AutoDelete: true, Exclusive: true,
		}); err != nil {
			return fmt.Errorf("failed to declare reply queue: %w", err)
		}

		publisher := rabbitmq.NewPublisher(channelPool)
		consumer := rabbitmq.NewConsumer(channelPool, rabbitmq.WithConsumerLogger(logger))

		bridge = httpapi.NewBridge(publisher, reg, cfg.Broker.ServicesExchange, replyQueue,
			httpapi.WithTimeout(cfg.Request.Timeout()),
			httpapi.WithMaxBodyBytes(cfg.Request.MaxBodyBytes),
			httpapi.WithLogger(logger),
			httpapi.WithMetrics(metrics.BridgeSink{}))

		brokerListener = listener.New(consumerAdapter{consumer}, reg, replyQueue,
			listener.WithLogger(logger),
			listener.WithMetrics(metrics.ListenerSink{}))

		healthRegistry.Register(health.NewRabbitMQChecker(connManager, logger))
		healthRegistry.Register(health.NewChannelPoolChecker(channelPool, logger))
		healthRegistry.Register(health.NewQueueChecker(replyQueue, channelPool, logger))
	}
	healthRegistry.Register(health.NewMemoryChecker(75, 90))
	healthRegistry.Register(health.NewComponentChecker("correlation_registry", func(ctx context.Context) (health.Status, string, map[string]interface{}, error) {
		count := reg.Count()
		details := map[string]interface{}{
			"pending_slots":   count,
			"orphan_total":    reg.OrphanCount(),
			"late_completion": reg.LateCompletionCount(),
		}
		metrics.PendingSlots.Set(float64(count))
		if count > 10000 {
			return health.StatusDegraded, "high pending slot count", details, nil
		}
		return health.StatusHealthy, "registry operating normally", details, nil
	}))

	imageHandler, err := imageupload.New("./uploads", "/static/images")
	if err != nil {
		return fmt.Errorf("failed to initialize image upload handler: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/actuator/prometheus", promhttp.Handler())
	mux.Handle("/api/health", health.Handler(healthRegistry, 5*time.Second))
	mux.HandleFunc("POST /api/images/{imageType...}", func(w http.ResponseWriter, r *http.Request) {
		imageHandler.Upload(r.PathValue("imageType"))(w, r)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		routingKey, ok := routeTable.Match(r.URL.Path)
		if !ok {
			httpresp.WriteError(w, http.StatusNotFound, "no route configured for this path")
			return
		}
		if bridge == nil {
			httpresp.WriteError(w, http.StatusServiceUnavailable, "broker integration disabled")
			return
		}
		bridge.Handle(routingKey)(w, r)
	})

	handler := middleware.CorrelationID()(
		middleware.AccessLog(logger)(
			middleware.CORS(middleware.CORSConfig{
				AllowOrigin:  cfg.CORS.AllowOrigin,
				AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowHeaders: cfg.CORS.AllowHeaders,
				MaxAgeSecond: cfg.CORS.MaxAgeSecond,
			})(
				auth.Filter(verifier)(
					auth.Authorize([]string{"/api/health", "/actuator", "/api/auth"})(mux),
				),
			),
		),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if brokerListener != nil {
		go func() {
			if err := brokerListener.Start(ctx); err != nil {
				logger.Error("reply listener stopped", "error", err)
			}
		}()
	}

	go func() {
		logger.Info("gateway listening", "addr", srv.Addr, "instanceId", instanceID, "replyQueue", replyQueue)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	cancel()

	logger.Info("shutting down gateway")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
