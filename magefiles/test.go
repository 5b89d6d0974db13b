// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// postgresDSNEnv enables the live postgres backend tests.
const postgresDSNEnv = "PIPEBOARD_TEST_POSTGRES_DSN"

// Test groups test targets (all, unit, postgres).
type Test mg.Namespace

// All runs all tests with the race detector.
func (Test) All() error {
	return sh.RunV(binGo, "test", "-race", "-v", "./...")
}

// Unit runs the tests that need no external services.
func (Test) Unit() error {
	env := map[string]string{postgresDSNEnv: ""}
	return sh.RunWithV(env, binGo, "test", "-v", "./...")
}

// Postgres runs the postgres backend tests against the server named by
// PIPEBOARD_TEST_POSTGRES_DSN.
func (Test) Postgres() error {
	if os.Getenv(postgresDSNEnv) == "" {
		fmt.Printf("%s is not set; skipping postgres tests.\n", postgresDSNEnv)
		return nil
	}
	return sh.RunV(binGo, "test", "-v", "-count=1", "./internal/postgres/...")
}
