package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RunServer serves the simulated endpoints on an ephemeral port,
// reporting the bound port on portChan, until ctx is cancelled. The
// channel is closed without a port when the listener cannot bind.
func RunServer(ctx context.Context, portChan chan<- int) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(GinLoggerMiddleware(), GinRecoveryMiddleware())

	for _, path := range []string{"/test", "/staging", "/development"} {
		r.GET(path, handleSimulatedRequest)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		slog.Error("Failed to bind server to a port", slog.String("error", err.Error()))
		close(portChan)
		return
	}
	port := listener.Addr().(*net.TCPAddr).Port
	portChan <- port
	slog.Info("Server started successfully", slog.Int("port", port))

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", slog.String("error", err.Error()))
		}
	}()

	if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
		slog.Error("Server encountered an unexpected error", slog.String("error", err.Error()))
		return
	}
	slog.Info("Server stopped cleanly")
}

func handleSimulatedRequest(c *gin.Context) {
	statusCode, response := generateRandomStatusResponse()

	log := slog.Default().With(
		slog.String("path", c.Request.URL.Path),
		slog.String("status_code", fmt.Sprintf("%d", statusCode)),
	)
	switch {
	case statusCode >= 500:
		log.Error("Internal server error", slog.String("response", response))
	case statusCode >= 400:
		log.Warn("Client request resulted in an error", slog.String("response", response))
	default:
		log.Info("Request processed successfully", slog.String("response", response))
	}

	c.JSON(statusCode, gin.H{"message": response})
}

// Pick a weighted random status code and a matching response body.
func generateRandomStatusResponse() (int, string) {
	statusOptions := []struct {
		statusCode int
		responses  []string
		weight     int
	}{
		{200, []string{"Success", "Processing"}, simCfg.ResponseWeights.Response200},
		{400, []string{"Failure"}, simCfg.ResponseWeights.Response400},
		{500, []string{"Timeout", "Error"}, simCfg.ResponseWeights.Response500},
	}

	weights := make([]int, len(statusOptions))
	for i, opt := range statusOptions {
		weights[i] = opt.weight
	}
	chosen := weightedRandomChoice(statusOptions, weights)
	return chosen.statusCode, chosen.responses[rand.Intn(len(chosen.responses))]
}

// Weighted random selection over parallel item and weight slices.
func weightedRandomChoice[T any](items []T, weights []int) T {
	totalWeight := 0
	for _, w := range weights {
		totalWeight += w
	}
	if totalWeight <= 0 {
		return items[0]
	}

	randVal := rand.Intn(totalWeight)
	for i, w := range weights {
		if randVal < w {
			return items[i]
		}
		randVal -= w
	}
	return items[len(items)-1]
}
