package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"music-search-api-go/config"
	"music-search-api-go/logcolors"

	log "github.com/sirupsen/logrus"
)

var conf = config.Get()

func init() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)

	level, err := log.ParseLevel(conf.Server.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, conf)
	if err != nil {
		log.Fatalf("%s Startup failed: %v", logcolors.LogServer, err)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              ":" + conf.Server.Port,
		Handler:           app.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("%s Listening on port %s", logcolors.LogServer, conf.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("%s %v", logcolors.LogServer, err)
		}
	}()

	<-ctx.Done()
	log.Infof("%s Shutting down", logcolors.LogServer)

	app.search.CancelAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("%s Graceful shutdown failed: %v", logcolors.LogServer, err)
	}
}
