package server

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/easelhq/easel/config"
	"github.com/easelhq/easel/content"
	easeltest "github.com/easelhq/easel/internal/testing"
	"github.com/easelhq/easel/logger"
	"github.com/easelhq/easel/publish"
)

// TestRace_BroadcastDuringUnregister exercises the disconnect-during-publish
// window:
// 1. broadcastMessage() copies the client list under RLock and releases it
// 2. Meanwhile unregisterClient() (driven by readPump) closes the client
// 3. The broadcast must not send on the closed channel
//
// Run with: go test -race -run TestRace_BroadcastDuringUnregister ./server
func TestRace_BroadcastDuringUnregister(t *testing.T) {
	database := easeltest.CreateTestDB(t)
	cfg := &config.Config{}
	cfg.Publisher.BroadcastEventsPerSecond = 5.0
	srv := New(cfg, content.NewStore(database), publish.NewStore(database))

	for iteration := 0; iteration < 10; iteration++ {
		numClients := 50
		clients := make([]*Client, numClients)
		for i := 0; i < numClients; i++ {
			client := &Client{
				server: srv,
				send:   make(chan interface{}, 256),
				id:     fmt.Sprintf("client_%d_%d", iteration, i),
				logger: logger.ComponentLogger("server.test"),
			}
			clients[i] = client
			srv.registerClient(client)
		}

		var wg sync.WaitGroup
		stopBroadcast := make(chan struct{})

		// Goroutine 1: continuously broadcast publication events
		wg.Add(1)
		go func() {
			defer wg.Done()
			sp := publish.NewScheduledPublication("content-race", time.Now())
			for {
				select {
				case <-stopBroadcast:
					return
				default:
					srv.BroadcastPublished(sp, sp.ContentID)
					time.Sleep(100 * time.Microsecond)
				}
			}
		}()

		// Goroutine 2: unregister clients one by one
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, client := range clients {
				srv.unregisterClient(client)
				time.Sleep(50 * time.Microsecond)
			}
		}()

		time.Sleep(50 * time.Millisecond)
		close(stopBroadcast)
		wg.Wait()
	}
}

func TestClientTrySendAfterClose(t *testing.T) {
	client := &Client{
		send:   make(chan interface{}, 1),
		id:     "closed_client",
		logger: logger.ComponentLogger("server.test"),
	}

	if !client.trySend("first") {
		t.Fatal("send to open client should succeed")
	}

	client.close()
	client.close() // Double close must be safe

	if client.trySend("second") {
		t.Fatal("send to closed client must be rejected, not panic")
	}
}
