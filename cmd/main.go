package main

import (
	"os"
	"os/signal"
	"syscall"

	"hermes/internal/bootstrap"
)

func main() {
	c := bootstrap.NewContainer()
	c.MustInit()

	if err := c.Run(); err != nil {
		c.Log.Fatalf("Failed to start: %v", err)
	}

	waitForShutdown(c)
}

// waitForShutdown blocks until a signal arrives or the container's context
// ends (fatal startup error in a goroutine), then runs the ordered shutdown.
func waitForShutdown(c *bootstrap.Container) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		c.Log.Infof("Received signal %s, shutting down...", sig)
	case <-c.Context.Done():
		c.Log.Info("Context cancelled, shutting down...")
	}

	c.Shutdown()
}
