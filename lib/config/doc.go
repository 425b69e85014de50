// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the container configuration used to build a
// database client.
//
// Configuration comes from a single file named either by the
// RECORDWIRE_CONFIG environment variable (via [Load]) or by an explicit
// path (via [LoadFile]). There is no discovery and no fallback: the file
// is the single source of truth, and environment variables never override
// its values. Files ending in .json or .jsonc are parsed as JSON with
// comments; everything else is YAML.
//
// A file may carry development and production sections that override
// base values when [Config].Environment matches, so one file can describe
// both container environments.
//
// Path fields (key and token files) are expanded after loading: ${HOME},
// ${VAR} and ${VAR:-default} patterns are supported.
//
// This package depends on no other recordwire packages.
package config
