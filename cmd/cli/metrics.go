package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lumen-io/client/internal/config"
	"github.com/lumen-io/client/internal/metrics"
	"github.com/sirupsen/logrus"
)

var metricsServer *http.Server

// startMetricsServer exposes the session metrics for the lifetime of the
// command
func startMetricsServer(cfg *config.Config, collector *metrics.Collector) error {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.GET(cfg.Metrics.Path, gin.WrapH(collector.Handler()))

	listener, err := net.Listen("tcp", cfg.Metrics.Address)
	if err != nil {
		return err
	}

	metricsServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := metricsServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Errorln("Metrics endpoint stopped")
		}
	}()

	logrus.WithFields(logrus.Fields{
		"address": listener.Addr().String(),
		"path":    cfg.Metrics.Path,
	}).Debugln("Serving metrics")

	return nil
}

func stopMetricsServer() {
	if metricsServer == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := metricsServer.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warnln("Failed to stop metrics endpoint")
	}
	metricsServer = nil
}
