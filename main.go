package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stemstr/quotation/internal/auth"
	"github.com/stemstr/quotation/internal/quotestore"
)

var (
	commit    string
	buildDate string
)

func main() {
	configPath := flag.String("config", "", "location of config file. If non is specified config will be loaded from the environment")
	flag.Parse()

	log.Printf("build info: commit: %v date: %v\n", commit, buildDate)

	var (
		cfg Config
		err error
	)
	if *configPath != "" {
		log.Printf("loading config from file %q\n", *configPath)
		err = cfg.Load(*configPath)
	} else {
		log.Println("loading config from env")
		err = cfg.LoadFromEnv()
	}
	if err != nil {
		log.Println(err)
		os.Exit(1)
	}

	store, err := quotestore.Open(cfg.DatabaseDriver, cfg.DatabaseURL, quotestore.Options{
		MaxOpenConns:       cfg.DatabaseMaxOpenConns,
		PersonDeletePolicy: quotestore.DeletePolicy(cfg.PersonDeletePolicy),
	})
	if err != nil {
		log.Printf("store err: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	keys := auth.NewJWKS(auth.JWKSConfig{
		URL:      cfg.AuthJWKSURL,
		CacheTTL: cfg.JWKSCacheTTL,
	})
	validator := auth.NewValidator(auth.ValidatorConfig{
		Issuer:    cfg.AuthIssuer,
		Audience:  cfg.AuthAudience,
		Algorithm: cfg.AuthAlgorithm,
	}, keys)

	h := &handlers{
		store: store,
		auth:  validator,
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(cfg, h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("api listening on %v\n", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server err: %v\n", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown err: %v\n", err)
	}
}
