// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for Parley tools.
//
// Configuration is loaded from a single file specified by either the
// PARLEY_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search.
//
// The file may carry development and production sections that
// override base values when [Config].Environment matches. Production
// defaults log at info level in JSON.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${PARLEY_STATE} and ${VAR:-default} patterns are expanded.
// No other environment variables override config values.
//
// This package depends on no other Parley packages.
package config
