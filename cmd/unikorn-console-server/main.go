/*
Copyright 2024 the Unikorn Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/unikorn-cloud/console/pkg/constants"
	"github.com/unikorn-cloud/console/pkg/server"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

func run() error {
	s := &server.Server{}
	s.AddFlags(flag.CommandLine, pflag.CommandLine)

	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.Parse()

	s.SetupLogging()

	logger := log.Log.WithName("init")
	logger.Info("service starting", "application", constants.Application, "version", constants.Version, "revision", constants.Revision)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx = log.IntoContext(ctx, log.Log)

	if err := s.SetupOpenTelemetry(ctx); err != nil {
		return err
	}

	manager, err := s.NewSessionManager()
	if err != nil {
		return err
	}

	defer manager.Close()

	checker, err := s.NewHealthChecker()
	if err != nil {
		return err
	}

	s.RunBackground(ctx, manager, checker)

	metricsServer := s.GetMetricsServer(checker)

	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err, "metrics server error")
		}
	}()

	httpServer, err := s.GetServer(manager)
	if err != nil {
		return err
	}

	drained := make(chan struct{})

	go func() {
		defer close(drained)

		<-ctx.Done()

		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.Options.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error(err, "server shutdown error")
		}

		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error(err, "metrics server shutdown error")
		}
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-drained

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Log.Error(err, "unexpected error")
		os.Exit(1)
	}
}
