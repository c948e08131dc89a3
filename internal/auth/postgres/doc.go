// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

// Package postgres provides PostgreSQL implementations of the auth
// repositories. Every repository joins a transaction carried in the context
// by store.Transactor.
package postgres
