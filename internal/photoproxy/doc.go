// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

// Package photoproxy implements the client to the photo-library proxy
// (an Immich-compatible API): asset bytes, thumbnails, asset metadata and
// album membership.
//
// Credentials are resolved on every call through the runtime settings
// manager, so an admin updating the proxy URL or API key takes effect
// without a restart. The proxy is optional; callers must handle
// ErrNotConfigured when no URL is known.
package photoproxy
