// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package events

import (
	"fmt"

	"github.com/marekvk/fotofable/internal/config"
	"github.com/marekvk/fotofable/internal/logging"
)

// Service is the event-publishing facade. A nil *Service is valid and
// publishes nothing, so call sites never gate on the events feature flag.
type Service struct {
	server *EmbeddedServer
	pub    *publisher
}

// New wires the configured broker: an embedded JetStream server when
// requested, otherwise the external URL. Returns (nil, nil) when event
// publishing is disabled.
func New(cfg *config.EventsConfig) (*Service, error) {
	if !cfg.Enabled {
		logging.Info().Msg("Event publishing disabled")
		return nil, nil
	}

	svc := &Service{}
	url := cfg.URL
	if cfg.EmbeddedServer {
		server, err := NewEmbeddedServer(cfg.StoreDir, 0)
		if err != nil {
			return nil, fmt.Errorf("start embedded nats: %w", err)
		}
		svc.server = server
		url = server.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	pub, err := newPublisher(url, cfg.SubjectPrefix)
	if err != nil {
		if svc.server != nil {
			svc.server.Shutdown()
		}
		return nil, err
	}
	svc.pub = pub
	logging.Info().Str("url", url).Str("prefix", cfg.SubjectPrefix).Msg("Event publisher ready")
	return svc, nil
}

// PublishCaptionCompleted publishes a caption completion. Publish failures
// are logged, not returned; eventing is best-effort beside the HTTP response.
func (s *Service) PublishCaptionCompleted(ev CaptionCompleted) {
	s.emit(SubjectCaptions, ev)
}

func (s *Service) PublishDuplicatesCompleted(ev DuplicatesCompleted) {
	s.emit(SubjectDuplicates, ev)
}

func (s *Service) PublishImportCompleted(ev ImportCompleted) {
	s.emit(SubjectImports, ev)
}

func (s *Service) emit(suffix string, payload any) {
	if s == nil || s.pub == nil {
		return
	}
	data, err := serialize(payload)
	if err != nil {
		logging.Warn().Err(err).Str("subject", suffix).Msg("Event serialization failed")
		return
	}
	if err := s.pub.publish(suffix, data); err != nil {
		logging.Warn().Err(err).Str("subject", suffix).Msg("Event publish failed")
	}
}

// Close stops the publisher and, when embedded, the broker.
func (s *Service) Close() error {
	if s == nil {
		return nil
	}
	var err error
	if s.pub != nil {
		err = s.pub.close()
	}
	if s.server != nil {
		s.server.Shutdown()
	}
	return err
}
