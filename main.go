package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/reef-pi/rpi/i2c"

	"github.com/evancroft666/aquadoser/controller"
	"github.com/evancroft666/aquadoser/controller/drivers"
	"github.com/evancroft666/aquadoser/controller/modules/doser"
	"github.com/evancroft666/aquadoser/controller/storage"
)

func main() {
	configPath := flag.String("config", "aquadoser.yml", "path to the yaml configuration file")
	devMode := flag.Bool("dev", false, "run without hardware")
	flag.Parse()

	cfg, err := controller.LoadConfig(*configPath)
	if err != nil {
		panic(err)
	}
	if *devMode {
		cfg.DevMode = true
	}

	log, err := controller.NewLogger(cfg.DevMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	store, err := storage.Open(cfg.Database)
	if err != nil {
		log.Fatalw("failed to open database", "path", cfg.Database, "error", err)
	}
	defer store.Close()

	var motor drivers.Motor = drivers.SoftMotor{}
	var led drivers.StatusIndicator = drivers.NopIndicator{}
	if !cfg.DevMode {
		bus, err := i2c.New()
		if err != nil {
			log.Fatalw("failed to open i2c bus", "error", err)
		}
		motor = drivers.NewPumpBoard(bus, cfg.I2CAddress)
		led = drivers.NewBoardIndicator(bus, cfg.I2CAddress)
	}

	var notifier doser.Notifier = doser.NopNotifier{}
	if cfg.MQTT.Enabled {
		notifier = doser.NewMQTTNotifier(cfg.MQTT.Broker, cfg.MQTT.ClientID, log)
	}

	metrics := doser.NewMetrics()
	sub := doser.New(doser.Deps{
		Store:    store,
		Motor:    motor,
		LED:      led,
		Notifier: notifier,
		Log:      log,
		Metrics:  metrics,
	}, time.Duration(cfg.TickSeconds)*time.Second)

	if err := sub.Setup(); err != nil {
		log.Fatalw("doser setup failed", "error", err)
	}
	if err := sub.Start(); err != nil {
		log.Fatalw("doser start failed", "error", err)
	}

	r := mux.NewRouter()
	sub.LoadAPI(r)
	r.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: cfg.Listen, Handler: r}
	go func() {
		log.Infow("http server listening", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("http server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	sub.Stop()
}
