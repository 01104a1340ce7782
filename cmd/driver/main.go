package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/NotrixInc/nx-driver-templates/drivers/benq-projector-go/internal/driver"
	"github.com/NotrixInc/nx-driver-templates/drivers/benq-projector-go/internal/driversdk"
	"github.com/NotrixInc/nx-driver-templates/drivers/benq-projector-go/internal/dynamostore"
	"github.com/NotrixInc/nx-driver-templates/drivers/benq-projector-go/internal/host"
	"github.com/NotrixInc/nx-driver-templates/drivers/benq-projector-go/internal/metrics"
	"github.com/NotrixInc/nx-driver-templates/drivers/benq-projector-go/internal/mqttbridge"
	"github.com/NotrixInc/nx-driver-templates/drivers/benq-projector-go/internal/statefeed"
	"github.com/NotrixInc/nx-driver-templates/drivers/benq-projector-go/internal/store"
)

func main() {
	var (
		deviceID = flag.String("device_id", "", "Core device UUID (assigned by controller-core)")
		cfgPath  = flag.String("config", "", "Path to config JSON file")
		logLevel = flag.String("log_level", "info", "debug, info, warn or error")
	)
	flag.Parse()

	if *cfgPath == "" {
		panic("missing -config path")
	}

	cfgBytes, err := os.ReadFile(*cfgPath)
	if err != nil {
		panic(err)
	}

	log := driversdk.NewLogger(os.Stderr, *logLevel)

	// The host side needs the resolved config before the driver sees it.
	var cfg driver.Config
	if err := json.Unmarshal(cfgBytes, &cfg); err != nil {
		panic(err)
	}
	cfg.ApplyEnv(os.Getenv)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	cfgBytes, err = json.Marshal(cfg)
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := store.New(cfg.Namespace, log, driversdk.NewSystemClock())
	if cfg.PublisherDir != "" {
		st.AddMirror(store.NewFileMirror(cfg.PublisherDir))
	}
	if cfg.DynamoDBEnable {
		dm, err := dynamostore.NewStateMirror(ctx, cfg.DynamoDBTable, log)
		if err != nil {
			panic(err)
		}
		st.AddMirror(dm)
	}
	if cfg.MQTTEnable {
		mb := mqttbridge.New(mqttbridge.Options{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
			Topic:    cfg.MQTTTopic,
		}, st, log)
		if err := mb.Connect(ctx); err != nil {
			panic(err)
		}
		defer mb.Close()
		st.AddMirror(mb)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	var health driversdk.HealthReporter = driversdk.NoopHealth{}
	if cfg.HealthAddr != "" {
		hs := host.NewHealthServer(cfg.HealthAddr)
		if err := hs.Start(); err != nil {
			panic(err)
		}
		defer hs.Stop()
		health = hs
	}

	var web *host.HTTPServer
	if cfg.HTTPAddr != "" {
		feed := statefeed.NewHub(st, log)
		st.AddMirror(feed)
		web = host.NewHTTPServer(cfg.HTTPAddr, reg, feed)
		if err := web.Start(); err != nil {
			panic(err)
		}
		log.Info("http server listening", "addr", web.Addr())
	}

	deps := driversdk.Dependencies{
		Store:  st,
		Logger: log,
		Clock:  driversdk.NewSystemClock(),
		Health: health,
	}

	d := driver.NewProjectorDriver(*deviceID, m)

	if err := d.Init(ctx, deps, driversdk.NewJSONConfig(cfgBytes)); err != nil {
		panic(err)
	}
	if err := d.Start(ctx); err != nil {
		panic(err)
	}

	// Wait for SIGTERM/SIGINT
	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, syscall.SIGINT, syscall.SIGTERM)

	<-sigC
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	_ = d.Stop(shutdownCtx)
	if web != nil {
		_ = web.Stop(shutdownCtx)
	}
	_ = json.NewEncoder(os.Stdout).Encode(map[string]any{"status": "stopped"})
}
