// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package stream

import (
	"sync"

	"github.com/marekvk/fotofable/internal/models"
)

// Emitter is the closed set of progress operations workers use. The caption
// orchestrator and the duplicate detector never write to the network
// directly; they emit through one of these.
type Emitter interface {
	Connected(message string)
	Progress(step string, pct int, message string)
	Partial(partialType string, content any)
	Warning(message, code string)
	Error(message, errType, step string)
	Complete(payload map[string]any)
}

// HubEmitter publishes events into the stream hub for async requests.
type HubEmitter struct {
	hub       *Hub
	requestID string
}

// NewHubEmitter builds an emitter bound to one request id.
func NewHubEmitter(hub *Hub, requestID string) *HubEmitter {
	return &HubEmitter{hub: hub, requestID: requestID}
}

func (e *HubEmitter) Connected(message string) {
	e.hub.Send(e.requestID, models.NewConnectedEvent(e.requestID, message))
}

func (e *HubEmitter) Progress(step string, pct int, message string) {
	e.hub.Send(e.requestID, models.NewProgressEvent(e.requestID, step, pct, message))
}

func (e *HubEmitter) Partial(partialType string, content any) {
	e.hub.Send(e.requestID, models.NewPartialEvent(e.requestID, partialType, content))
}

func (e *HubEmitter) Warning(message, code string) {
	e.hub.Send(e.requestID, models.NewWarningEvent(e.requestID, message, code))
}

func (e *HubEmitter) Error(message, errType, step string) {
	e.hub.Send(e.requestID, models.NewErrorEvent(e.requestID, message, errType, step))
}

func (e *HubEmitter) Complete(payload map[string]any) {
	e.hub.Send(e.requestID, models.NewCompleteEvent(e.requestID, payload))
}

// NopEmitter discards everything. Sync endpoints use it: they return the
// final result directly and have no stream.
type NopEmitter struct{}

func (NopEmitter) Connected(string)             {}
func (NopEmitter) Progress(string, int, string) {}
func (NopEmitter) Partial(string, any)          {}
func (NopEmitter) Warning(string, string)       {}
func (NopEmitter) Error(string, string, string) {}
func (NopEmitter) Complete(map[string]any)      {}

// CollectEmitter records emissions in order for tests and for the sync
// endpoints that surface warnings alongside the result.
type CollectEmitter struct {
	mu     sync.Mutex
	events []models.Event
}

func (e *CollectEmitter) append(ev models.Event) {
	e.mu.Lock()
	e.events = append(e.events, ev)
	e.mu.Unlock()
}

func (e *CollectEmitter) Connected(message string) {
	e.append(models.NewConnectedEvent("", message))
}

func (e *CollectEmitter) Progress(step string, pct int, message string) {
	e.append(models.NewProgressEvent("", step, pct, message))
}

func (e *CollectEmitter) Partial(partialType string, content any) {
	e.append(models.NewPartialEvent("", partialType, content))
}

func (e *CollectEmitter) Warning(message, code string) {
	e.append(models.NewWarningEvent("", message, code))
}

func (e *CollectEmitter) Error(message, errType, step string) {
	e.append(models.NewErrorEvent("", message, errType, step))
}

func (e *CollectEmitter) Complete(payload map[string]any) {
	e.append(models.NewCompleteEvent("", payload))
}

// Events returns the recorded emissions in order.
func (e *CollectEmitter) Events() []models.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Event, len(e.events))
	copy(out, e.events)
	return out
}

// Warnings returns the messages of recorded warning events.
func (e *CollectEmitter) Warnings() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, ev := range e.events {
		if ev.Type == models.EventWarning {
			if msg, ok := ev.Payload["message"].(string); ok {
				out = append(out, msg)
			}
		}
	}
	return out
}
