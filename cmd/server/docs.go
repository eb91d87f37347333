// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

// Package main provides the Fotofable HTTP server
//
// Fotofable generates contextual photo captions and detects near-duplicate
// photos against a self-hosted model host.
//
// @title Fotofable API
// @version 1.0
// @description Contextual photo captioning and duplicate detection service
// @description
// @description ## Features
// @description
// @description - **Staged Caption Pipeline**: vision, travel, cultural, caption and hashtag stages with per-stage degradation
// @description - **Geographic Context**: DuckDB spatial store with lazy first-sight country imports (GeoNames, UNESCO, OSM)
// @description - **Duplicate Detection**: embedding similarity with quality-ranked grouping
// @description - **Streaming Progress**: SSE and WebSocket event streams for async jobs
// @description - **Optional Events**: NATS JetStream completion events
// @description
// @description ## Error Responses
// @description
// @description All error responses follow this format:
// @description ```json
// @description {
// @description   "success": false,
// @description   "error": "Human-readable error message",
// @description   "code": "ERROR_CODE"
// @description }
// @description ```
// @description
// @description ## Rate Limiting
// @description
// @description Default rate limit: 100 requests per minute per IP address.
//
// @contact.name GitHub Repository
// @contact.url https://github.com/marekvk/fotofable/issues
//
// @license.name AGPL-3.0-or-later
// @license.url https://www.gnu.org/licenses/agpl-3.0.html
//
// @host localhost:8087
// @BasePath /api
// @schemes http https
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Admin bearer token (HS256 JWT signed with SERVER_ADMIN_SECRET). Required for /api/admin endpoints only.
//
// @tag.name AI
// @tag.description Caption generation and pipeline configuration
//
// @tag.name Duplicates
// @tag.description Duplicate detection and album analysis
//
// @tag.name Admin
// @tag.description Country import management and runtime settings
//
// @tag.name Health
// @tag.description Liveness and readiness probes
package main
