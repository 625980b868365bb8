package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"guardians-shop/internal/config"
	"guardians-shop/internal/database"
	"guardians-shop/internal/infrastructure/payment"
	"guardians-shop/internal/infrastructure/rcon"
	"guardians-shop/internal/logger"
	"guardians-shop/internal/metrics"
	"guardians-shop/internal/repo"
	"guardians-shop/internal/service"
	"guardians-shop/internal/worker"
)

// app holds every long lived dependency of one process.
type app struct {
	cfg *config.Config
	log *slog.Logger

	db       *sql.DB
	dbHealth database.Service
	redis    *redis.Client

	orders   repo.OrderRepo
	products repo.ProductRepo
	gateway  payment.PaymentGateway
	rcon     *rcon.Client

	registry    *prometheus.Registry
	fulfillment *metrics.FulfillmentMetrics
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		log:      logger.NewLogger(cfg.ServiceName, cfg.LogLevel),
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.fulfillment = metrics.NewFulfillmentMetrics(a.registry, metricPrefix(cfg.ServiceName))

	if err := a.openStores(ctx); err != nil {
		a.Close()
		return nil, err
	}

	switch cfg.Payment.Provider {
	case config.ProviderMock:
		a.log.Warn("using mock payment gateway, no real payment will be verified")
		a.gateway = payment.NewMockGateway()
	default:
		gw, err := payment.NewMercadoPagoGateway(cfg.Payment.AccessToken)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init mercadopago: %w", err)
		}
		a.gateway = gw
	}

	a.rcon = rcon.NewClient(rcon.Config{
		Host:           cfg.RCON.Host,
		Port:           cfg.RCON.Port,
		Password:       cfg.RCON.Password,
		DialTimeout:    cfg.RCON.DialTimeout,
		CommandTimeout: cfg.RCON.CommandTimeout,
	})
	return a, nil
}

func (a *app) openStores(ctx context.Context) error {
	var catalog repo.ProductRepo

	switch a.cfg.Database.Driver {
	case config.DriverMemory:
		a.log.Warn("using in-memory order store, orders are lost on restart")
		a.orders = repo.NewMemoryOrderRepo()
		catalog = repo.NewStaticProductRepo(database.DefaultProducts)
	default:
		db, err := database.NewPostgres(ctx, database.Config{
			Host:     a.cfg.Database.Host,
			Port:     a.cfg.Database.Port,
			Username: a.cfg.Database.Username,
			Password: a.cfg.Database.Password,
			Database: a.cfg.Database.Database,
			Schema:   a.cfg.Database.Schema,
		}.DSN())
		if err != nil {
			return err
		}
		a.db = db
		a.dbHealth = database.New(db)
		a.orders = repo.NewOrderRepo(db)
		catalog = repo.NewProductRepo(db)
		a.log.Info("connected to postgres", slog.String("host", a.cfg.Database.Host))
	}

	if a.cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			// The cache falls through to the catalog on every error.
			a.log.Warn("redis unreachable, catalog cache degraded", slog.Any("error", err))
		}
		catalog = repo.NewCachedProductRepo(catalog, a.redis, a.cfg.Redis.TTL, a.log)
	}
	a.products = catalog
	return nil
}

func (a *app) orderService() service.OrderService {
	return service.NewOrderService(
		a.orders,
		a.products,
		a.gateway,
		service.Config{GatewayTimeout: a.cfg.Payment.Timeout},
		a.log,
		a.fulfillment,
	)
}

func (a *app) deliveryWorker() *worker.DeliveryWorker {
	return worker.NewDeliveryWorker(
		a.orders,
		a.rcon,
		worker.DeliveryConfig{
			Interval:   a.cfg.Delivery.Interval,
			BatchSize:  a.cfg.Delivery.BatchSize,
			ClaimLease: a.cfg.Delivery.ClaimLease,
			AlertAfter: a.cfg.Delivery.AlertAfter,
		},
		a.log,
		a.fulfillment,
	)
}

func (a *app) Close() {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.dbHealth != nil {
		errs = append(errs, a.dbHealth.Close())
	}
	if err := errors.Join(errs...); err != nil && a.log != nil {
		a.log.Warn("error during shutdown", slog.Any("error", err))
	}
}

// metricPrefix turns a service name into a valid metric namespace.
func metricPrefix(name string) string {
	out := []byte(name)
	for i, c := range out {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_') {
			out[i] = '_'
		}
	}
	return string(out)
}
