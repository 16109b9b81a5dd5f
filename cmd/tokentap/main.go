// Package main is the entry point for the tokentap capture proxy.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/pedro9bee/tokentap/internal/catalog"
	"github.com/pedro9bee/tokentap/internal/config"
	"github.com/pedro9bee/tokentap/internal/extract"
	"github.com/pedro9bee/tokentap/internal/flow"
	"github.com/pedro9bee/tokentap/internal/proxyserver"
	"github.com/pedro9bee/tokentap/internal/store"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	cat, err := catalog.Load(cfg.Catalog.OverridePath)
	if err != nil {
		log.Fatalf("failed to load provider catalog: %v", err)
	}
	if watcher, err := cat.Watch(func(err error) {
		log.Printf("tokentap: catalog watch: %v", err)
	}); err != nil {
		log.Printf("tokentap: catalog hot-reload disabled: %v", err)
	} else if watcher != nil {
		defer watcher.Close()
	}

	estimator := extract.NewEstimator(cfg.Catalog.TokenizerVocab)
	defer estimator.Close()

	ctx := context.Background()
	st, err := store.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer st.Close(ctx)
	if err := st.EnsureIndexes(ctx); err != nil {
		log.Fatalf("failed to ensure store indexes: %v", err)
	}

	adminToken, err := proxyserver.LoadOrCreateAdminToken(cfg.Admin.TokenFile)
	if err != nil {
		log.Fatalf("failed to load admin token: %v", err)
	}

	table := flow.NewTable(cat, estimator)
	defer table.Close()
	table.SetDebug(cfg.Debug)

	ingestor := proxyserver.NewIngestor(table, st)

	dashboard := proxyserver.New(st, cat, adminToken)
	dashboardServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      dashboard,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 2)

	go func() {
		log.Printf("tokentap dashboard listening on :%d", cfg.Server.Port)
		errCh <- dashboardServer.ListenAndServe()
	}()

	switch cfg.Proxy.Mode {
	case "direct":
		direct := proxyserver.NewDirectProxy(cat, ingestor)
		proxyHTTPServer := &http.Server{
			Addr:    cfg.Proxy.BindAddr(),
			Handler: direct,
		}
		go func() {
			log.Printf("tokentap direct proxy listening on %s", cfg.Proxy.BindAddr())
			errCh <- proxyHTTPServer.ListenAndServe()
		}()
	case "mitm":
		log.Printf("tokentap running in mitm mode on %s — wire a MITM addon runtime to flow.Table via the flow.Addon interface", cfg.Proxy.BindAddr())
	default:
		log.Fatalf("unknown proxy.mode %q: want \"mitm\" or \"direct\"", cfg.Proxy.Mode)
	}

	if err := <-errCh; err != nil {
		log.Fatalf("server error: %v", err)
	}
}
