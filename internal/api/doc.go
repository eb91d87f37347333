// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

// Package api is the HTTP surface: Chi routing, request admission, caption
// and duplicate dispatch (sync, async and streaming), the admin group and
// the operational endpoints. Errors use one flat shape:
// {success:false, error, code}.
package api
