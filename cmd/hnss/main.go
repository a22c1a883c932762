package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"hnsaved/cmd/hnss/commands"
	"hnsaved/internal/components/telemetry"
	"hnsaved/lib/util/serviceutil"
)

func main() {
	ctx, interrupted, stop := serviceutil.SignalContext(context.Background())

	otel, err := telemetry.SetupFromEnv(ctx, "hnss")
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to setup telemetry:", err)
	}

	err = commands.ExecuteContext(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	otel.Shutdown(shutdownCtx)
	cancel()
	stop()

	if interrupted() {
		fmt.Fprintln(os.Stderr, ">> Caught user interrupt. Exiting...")
		os.Exit(1)
	}
	if err != nil {
		serviceutil.Fatal("hnss failed", err)
	}
}
