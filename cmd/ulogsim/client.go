/***************************************************************
 *
 * Copyright (C) 2025, Pelican Project, Morgridge Institute for Research
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you
 * may not use this file except in compliance with the License.  You may
 * obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 ***************************************************************/
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// StartMockClients spawns numClients independent clients that poll the
// simulated server until ctx is cancelled.
func StartMockClients(ctx context.Context, numClients int, serverPort int, wg *sync.WaitGroup) {
	for i := 0; i < numClients; i++ {
		clientID := fmt.Sprintf("client-%d", i+1)
		wg.Add(1)
		go runClient(ctx, clientID, serverPort, wg)
	}
}

// runClient issues weighted random requests in its own goroutine.
func runClient(ctx context.Context, clientID string, serverPort int, wg *sync.WaitGroup) {
	defer wg.Done()
	client := &http.Client{Timeout: 3 * time.Second}

	log := slog.Default().With(slog.String("clientID", clientID))

	for {
		select {
		case <-ctx.Done():
			log.Info("Client stopping due to shutdown signal")
			return
		case <-time.After(time.Millisecond * time.Duration(100+rand.Intn(400))):
		}

		jobID := fmt.Sprintf("job-%d", rand.Intn(100000))
		url := fmt.Sprintf("http://127.0.0.1:%d/%s", serverPort, pickRequestPath())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			log.Error("Failed to build request", slog.String("error", err.Error()))
			continue
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Error("Failed to send request",
				slog.String("jobID", jobID),
				slog.String("error", err.Error()),
			)
			continue
		}

		log.Info("Request sent",
			slog.String("jobID", jobID),
			slog.String("status", fmt.Sprintf("%d", resp.StatusCode)),
		)
		resp.Body.Close()
	}
}

// Pick a weighted random request path.
func pickRequestPath() string {
	paths := []string{
		"test",
		"staging",
		"development",
	}
	weights := []int{
		simCfg.PathWeights.Test,
		simCfg.PathWeights.Staging,
		simCfg.PathWeights.Development,
	}
	return weightedRandomChoice(paths, weights)
}
