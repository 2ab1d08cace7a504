package main

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/sessionkeeper/internal/testutil"
)

func Test_run(t *testing.T) {
	noenv := func(string) string { return "" }

	listenAddr := func(t *testing.T) string {
		port, err := testutil.RandomPort()
		require.NoError(t, err, "failed to get random port to start server")
		return fmt.Sprintf("localhost:%d", port)
	}

	t.Run("stop with signal in memory", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(t.Context(), 500*time.Millisecond) // Half Second
		t.Cleanup(cancel)

		err := run(ctx, noenv, os.Getwd, []string{
			"--address", listenAddr(t),
			"--log-level", "debug",
			"--secret-key", "secret",
		})

		require.NoError(t, err, "on correct stop should not return error")
	})

	t.Run("fail without secret key", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(t.Context(), 500*time.Millisecond)
		t.Cleanup(cancel)

		err := run(ctx, noenv, os.Getwd, []string{
			"--address", listenAddr(t),
		})

		require.Error(t, err, "app must not start without secret key")
	})

	t.Run("fail with bad rotation threshold", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(t.Context(), 500*time.Millisecond)
		t.Cleanup(cancel)

		err := run(ctx, noenv, os.Getwd, []string{
			"--address", listenAddr(t),
			"--secret-key", "secret",
			"--rotation-threshold", "1.5",
		})

		require.Error(t, err)
	})

	t.Run("stop with signal on postgres", func(t *testing.T) {
		pg := testutil.StartPostgresContainer(t)
		t.Cleanup(pg.Terminate)

		ctx, cancel := context.WithTimeout(t.Context(), 500*time.Millisecond)
		t.Cleanup(cancel)

		err := run(ctx, noenv, os.Getwd, []string{
			"--address", listenAddr(t),
			"--database", pg.DSN,
			"--secret-key", "secret",
		})

		require.NoError(t, err)
	})
}
