// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	"github.com/ClusterCockpit/darwin-ingest/internal/bplan"
	"github.com/ClusterCockpit/darwin-ingest/internal/config"
	"github.com/ClusterCockpit/darwin-ingest/internal/darwin"
	"github.com/ClusterCockpit/darwin-ingest/internal/httpapi"
	"github.com/ClusterCockpit/darwin-ingest/internal/refdata"
	"github.com/ClusterCockpit/darwin-ingest/internal/repository"
	"github.com/ClusterCockpit/darwin-ingest/internal/snapshot"
	"github.com/ClusterCockpit/darwin-ingest/internal/stomp"
	"github.com/ClusterCockpit/darwin-ingest/internal/supervisor"
	"github.com/ClusterCockpit/darwin-ingest/pkg/log"
	"github.com/google/gops/agent"
)

func main() {
	var flagConfigFile, flagEnvFile string
	var flagGops bool

	flag.StringVar(&flagConfigFile, "config", "./config.json", "Path to the ingester's JSON configuration")
	flag.StringVar(&flagEnvFile, "env", "./.env", "Path to an optional .env file providing secrets as environment variables")
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.Parse()

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	if err := config.LoadEnv(flagEnvFile); err != nil {
		log.Fatalf("parsing %q failed: %s", flagEnvFile, err.Error())
	}

	config.Init(flagConfigFile)
	log.SetLogLevel(config.Keys.LogLevel)

	debug.SetGCPercent(25)

	repository.Connect(config.Keys.DatabaseString)
	writer := repository.NewWriter(repository.GetConnection().DB)

	refs := refdata.NewStore()
	processor := darwin.NewProcessor(writer, refs)
	propagator := darwin.NewPropagator(repository.GetConnection().DB, writer, refs)

	ctx, cancel := context.WithCancel(context.Background())

	var loader *refdata.Loader
	if config.Keys.S3Bucket != "" {
		var err error
		loader, err = refdata.NewLoader(refdata.SourceConfig{
			Endpoint:  config.Keys.S3Endpoint,
			Bucket:    config.Keys.S3Bucket,
			AccessKey: config.Keys.S3Access,
			SecretKey: config.Keys.S3Secret,
			Region:    config.Keys.S3Region,
		}, refs, writer)
		if err != nil {
			log.Fatalf("refdata: %s", err.Error())
		}
	}

	if config.Keys.BPlanPath != "" {
		if err := bplan.Import(config.Keys.BPlanPath, writer); err != nil {
			log.Errorf("bplan: %v", err)
		}
	}

	if loader != nil {
		if err := loader.Refresh(ctx); err != nil {
			log.Errorf("refdata: initial refresh failed: %v", err)
		}
	}

	lastRetrieved, err := httpapi.LastRetrieved(ctx, repository.GetConnection().DB)
	if err != nil {
		log.Errorf("httpapi: last retrieved lookup failed: %v", err)
	}

	if !config.Keys.NoFromFTP && (lastRetrieved.IsZero() || time.Since(lastRetrieved) > 24*time.Hour) {
		bootstrapper := snapshot.NewBootstrapper(snapshot.Config{
			Hostname:         config.Keys.FTPHostname,
			Username:         config.Keys.FTPUsername,
			Password:         config.Keys.FTPPassword,
			BaseSnapshotOnly: config.Keys.FTPSnapshotBaseSnapshotOnly,
		}, processor, writer)

		if err := bootstrapper.Run(ctx); err != nil {
			log.Errorf("snapshot: bootstrap failed: %v", err)
		}
	}

	supervisor.WaitForQueueDrain(ctx, writer, 0)

	var subscriber *stomp.Subscriber
	if !config.Keys.NoListenSTOMP {
		subscriber = stomp.NewSubscriber(stomp.Config{
			Hostname:         config.Keys.Hostname,
			Username:         config.Keys.Username,
			Password:         config.Keys.Password,
			Subscribe:        config.Keys.Subscribe,
			Identifier:       config.Keys.ClientID,
			HeartbeatSeconds: config.Keys.HeartbeatSeconds,
		}, processor, writer)
		subscriber.ConnectAndSubscribe(ctx)
	}

	super, err := supervisor.New(subscriber, loader, propagator, writer)
	if err != nil {
		log.Fatalf("supervisor: %s", err.Error())
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := super.Start(ctx); err != nil {
			log.Errorf("supervisor: %v", err)
		}
	}()

	api := &httpapi.API{Writer: writer, Subscriber: subscriber}
	server := &http.Server{
		Addr:         config.Keys.HTTPAddr,
		Handler:      api.NewRouter(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if config.Keys.HTTPAddr == "" {
			return
		}
		log.Infof("httpapi: listening on %s", config.Keys.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("httpapi: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)

	writer.Close()
	wg.Wait()
}
