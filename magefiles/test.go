//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// envPostgresDSN points the postgres backend tests at a live database.
const envPostgresDSN = "STOCKROOM_TEST_POSTGRES_DSN"

// Test groups test targets (all, unit, race, postgres).
type Test mg.Namespace

// All runs every test. Postgres tests skip unless STOCKROOM_TEST_POSTGRES_DSN is set.
func (Test) All() error {
	return sh.RunV(binGo, "test", "-v", "./...")
}

// Unit runs the tests that need no external services.
func (Test) Unit() error {
	return sh.RunWithV(map[string]string{envPostgresDSN: ""}, binGo, "test", "./...")
}

// Race runs the unit tests with the race detector.
func (Test) Race() error {
	return sh.RunWithV(map[string]string{envPostgresDSN: ""}, binGo, "test", "-race", "./...")
}

// Postgres runs the postgres backend tests against STOCKROOM_TEST_POSTGRES_DSN.
func (Test) Postgres() error {
	if os.Getenv(envPostgresDSN) == "" {
		return fmt.Errorf("%s is not set", envPostgresDSN)
	}
	return sh.RunV(binGo, "test", "-v", "-count=1", "./internal/postgres/...")
}
