// The dev backend serves the chat widget's external collaborators in
// memory: the websocket relay plus the REST provisioning and history
// endpoints. Nothing survives a restart.
package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/estately/chatkit/auth"
	"github.com/estately/chatkit/backend"
)

var (
	flagAddr           = flag.String("addr", "127.0.0.1:8000", "server address, ip:port")
	flagDisableMetrics = flag.Bool("disable-metrics", false, "disable prometheus metrics")
)

func main() {
	flag.Parse()
	defer glog.Flush()

	srv := backend.NewServer(&auth.QueryClient{})

	mux := http.NewServeMux()
	mux.Handle("/", srv.Handler())
	if !*flagDisableMetrics {
		mux.Handle("/metrics", promhttp.HandlerFor(
			prometheus.DefaultGatherer,
			promhttp.HandlerOpts{},
		))
	}

	httpServer := &http.Server{Addr: *flagAddr, Handler: mux}

	go func() {
		glog.Infof("dev backend listening on %s", *flagAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			glog.Errorf("dev backend: serve error: %v", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	glog.Infof("received signal `%s`, stopping", sig.String())

	srv.Close()
	_ = httpServer.Close()
	glog.Info("dev backend exited")
}
