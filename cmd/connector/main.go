package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shopbridge/cmd/connector/config"
	"shopbridge/internal/fulfillment"
	"shopbridge/internal/marketplace"
	"shopbridge/internal/observability"
	"shopbridge/internal/realtime"
	"shopbridge/internal/reliability"
	"shopbridge/internal/routing"
	"shopbridge/internal/tracking"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("connector error: %v", err)
	}
}

func run(ctx context.Context) error {
	marketplaceClient, err := buildMarketplaceClient()
	if err != nil {
		return err
	}
	fulfillmentClient, err := buildFulfillmentClient()
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	hub := realtime.NewHub()
	go hub.Run()

	inventorySync, cleanupCache, err := buildInventorySync(ctx, fulfillmentClient)
	if err != nil {
		return err
	}
	defer cleanupCache()

	transformer := routing.NewTransformer(loadTransformerConfig())

	routingCfg, err := config.LoadRouting()
	if err != nil {
		return err
	}
	trackingCfg, err := config.LoadTracking()
	if err != nil {
		return err
	}

	trackingStore, cleanupStore, err := buildTrackingStore(ctx)
	if err != nil {
		return err
	}
	defer cleanupStore()

	trackingSync, err := tracking.New(tracking.Deps{
		Marketplace: marketplaceClient,
		Fulfillment: fulfillmentClient,
		Store:       trackingStore,
		Metrics:     metrics,
		OnResult: func(result tracking.Result) {
			event := realtime.Event{Kind: "tracking_synced", OrderID: result.OrderID}
			switch {
			case result.Skipped:
				event.Kind = "tracking_skipped"
			case result.NotReady:
				event.Kind = "tracking_not_ready"
			case result.Err != nil:
				event.Kind = "tracking_failed"
				event.Detail = result.Err.Error()
			default:
				event.Detail = result.TrackingNumber
			}
			hub.PublishEvent(event)
		},
	}, tracking.Config{
		MaxRetries:         trackingCfg.MaxRetries,
		RetryDelay:         trackingCfg.RetryDelay,
		DryRun:             trackingCfg.DryRun,
		SyncInterval:       trackingCfg.SyncInterval,
		RateLimitPerMinute: trackingCfg.RateLimitPerMinute,
	})
	if err != nil {
		return err
	}

	router, err := routing.NewRouter(routing.Deps{
		Marketplace: marketplaceClient,
		Fulfillment: fulfillmentClient,
		Transformer: transformer,
		Inventory:   inventorySync,
		Metrics:     metrics,
		OnResult: func(result routing.RoutingResult) {
			event := realtime.Event{
				Kind:    "order_routed",
				OrderID: result.OrderID,
				Stage:   string(result.Stage()),
			}
			if !result.Success {
				event.Kind = "order_route_failed"
				event.Detail = result.Err.Error()
			}
			hub.PublishEvent(event)
			if result.Success {
				if err := trackingSync.Register(ctx, result.OrderID, result.FulfillmentOrderID); err != nil {
					log.Printf("register tracking for %s: %v", result.OrderID, err)
				}
			}
		},
	}, routing.RouterConfig{
		MaxConcurrentOrders: routingCfg.MaxConcurrentOrders,
		StopOnError:         routingCfg.StopOnError,
		PageSize:            routingCfg.PageSize,
	})
	if err != nil {
		return err
	}

	var scheduler *tracking.Scheduler
	if trackingCfg.SchedulerEnabled {
		scheduler = tracking.NewScheduler(trackingSync, tracking.Config{
			SyncInterval:       trackingCfg.SyncInterval,
			RateLimitPerMinute: trackingCfg.RateLimitPerMinute,
		}, log.Printf, metrics.AddRateLimitWait)
		scheduler.Start()
		defer scheduler.Stop()
		log.Printf("tracking scheduler enabled (interval %s)", trackingCfg.SyncInterval)
	}

	obsCfg, err := config.LoadObservability()
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:    obsCfg.Addr,
		Handler: newServerHandler(router, trackingSync, metrics, hub),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("connector listening on %s", obsCfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func buildMarketplaceClient() (marketplace.Client, error) {
	cfg, err := config.LoadMarketplace()
	if err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		log.Printf("no marketplace API configured, using in-memory client")
		return marketplace.NewInMemoryClient(), nil
	}
	return marketplace.NewHTTPClient(cfg.BaseURL, cfg.Token, cfg.Timeout), nil
}

func buildFulfillmentClient() (fulfillment.Client, error) {
	cfg, err := config.LoadFulfillment()
	if err != nil {
		return nil, err
	}

	var base fulfillment.Client
	if cfg.BaseURL == "" {
		log.Printf("no fulfillment API configured, using in-memory client")
		base = fulfillment.NewInMemoryClient()
	} else {
		base = fulfillment.NewHTTPClient(cfg.BaseURL, cfg.Token, cfg.Timeout)
	}

	breaker := reliability.NewCircuitBreaker(reliability.CircuitBreakerConfig{
		MaxFailures:  5,
		ResetTimeout: 30 * time.Second,
	})
	retry := reliability.RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
	return fulfillment.NewReliableClient(base, nil, breaker, retry), nil
}
