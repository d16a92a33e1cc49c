package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/abrandao/iotseries/pkg/config"
	"github.com/abrandao/iotseries/pkg/factory"
	"github.com/abrandao/iotseries/pkg/filewriter"
	"github.com/abrandao/iotseries/pkg/filter"
	"github.com/abrandao/iotseries/pkg/restapi"
	"github.com/abrandao/iotseries/pkg/timeseries"
)

const version = "1.0.0"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "iotseriesd.yaml", "path to the declarative series/filters document")
	listenAddr := flag.String("listen", config.DefaultListenAddr, "REST server listen address")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("iotseriesd " + version)
		return 0
	}

	log.Println("starting iotseriesd...")

	doc, err := factory.Load(*configPath)
	if err != nil {
		log.Printf("cannot load config %s: %v", *configPath, err)
		return 1
	}

	backends, err := factory.NewBackendFactory(doc)
	if err != nil {
		log.Printf("cannot initialize backends: %v", err)
		return 1
	}
	defer backends.Close()

	mgr := timeseries.NewManager(backends)
	if err := declareSeries(doc, mgr); err != nil {
		log.Printf("cannot declare series: %v", err)
		return 1
	}

	pool := filewriter.NewPool()
	// Empty Collaborators: MQTTSource/MQTTSink/Lua/IMST filters need a
	// real broker/script/radio client wired in here per deployment.
	filters, err := factory.BuildFilters(doc, mgr, pool, factory.Collaborators{})
	if err != nil {
		log.Printf("cannot build filters: %v", err)
		return 1
	}

	scheduler := filter.NewScheduler(filters)
	if err := scheduler.Start(); err != nil {
		log.Printf("cannot start filters: %v", err)
		return 1
	}
	log.Printf("%d filter(s) running", len(filters))

	server := &http.Server{
		Addr:         *listenAddr,
		Handler:      restapi.NewRouter(mgr),
		ReadTimeout:  config.HTTPReadTimeout,
		WriteTimeout: config.HTTPWriteTimeout,
		IdleTimeout:  config.HTTPIdleTimeout,
	}

	go func() {
		log.Printf("REST server listening on %s", *listenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("REST server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("REST server shutdown warning: %v", err)
	}

	log.Println("stopping filters...")
	scheduler.Stop()

	log.Println("iotseriesd exited cleanly")
	return 0
}

// declareSeries manually creates every series doc declares up front, so
// that an undeclared-name reference from a filter always goes through
// the auto-create path deliberately rather than by omission.
func declareSeries(doc *factory.Document, mgr *timeseries.Manager) error {
	for name, spec := range doc.Series {
		policy, err := factory.ParsePolicy(spec.Policy)
		if err != nil {
			return err
		}
		if err := mgr.Create(name, policy); err != nil {
			return err
		}
	}
	return nil
}
