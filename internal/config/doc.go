// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

// Package config provides layered configuration management: struct defaults,
// an optional YAML file, and environment variables mapped through an explicit
// allow-list. It also holds the credential encryptor and the runtime settings
// manager backing the admin surface.
package config
