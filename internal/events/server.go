// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package events

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

const serverReadyTimeout = 30 * time.Second

// EmbeddedServer runs an in-process NATS JetStream instance so a
// single-host deployment needs no external broker.
type EmbeddedServer struct {
	server *server.Server
}

// NewEmbeddedServer starts a JetStream-enabled server on a loopback port.
// port <= 0 picks a random free port.
func NewEmbeddedServer(storeDir string, port int) (*EmbeddedServer, error) {
	if port <= 0 {
		port = server.RANDOM_PORT
	}
	opts := &server.Options{
		ServerName: "fotofable-events",
		Host:       "127.0.0.1",
		Port:       port,
		JetStream:  true,
		StoreDir:   storeDir,
		NoLog:      true,
		NoSigs:     true,
		MaxPayload: 1 << 20,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create nats server: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(serverReadyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("nats server not ready within %s", serverReadyTimeout)
	}
	return &EmbeddedServer{server: ns}, nil
}

// ClientURL is the loopback connection URL for the running server.
func (s *EmbeddedServer) ClientURL() string {
	return s.server.ClientURL()
}

func (s *EmbeddedServer) Shutdown() {
	s.server.Shutdown()
	s.server.WaitForShutdown()
}
