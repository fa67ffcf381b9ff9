/*
 * Copyright 2017-2022 Provide Technologies Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"fmt"
	"os"

	"github.com/golang-migrate/migrate"
	_ "github.com/golang-migrate/migrate/database/postgres"
	_ "github.com/golang-migrate/migrate/source/file"

	"github.com/stealthmix/transfercore/common"
)

// migrationsSourceURL points at the repo-relative SQL migrations for
// the transfer_states table; overridable for containerized deploys
// where the working directory differs from the repo root.
func migrationsSourceURL() string {
	if dir := os.Getenv("MIGRATIONS_DIR"); dir != "" {
		return fmt.Sprintf("file://%s", dir)
	}
	return "file://migrations"
}

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		common.Log.Panicf("DATABASE_URL is required to run migrations")
	}

	m, err := migrate.New(migrationsSourceURL(), dsn)
	if err != nil {
		common.Log.Panicf("failed to initialize migrator; %s", err.Error())
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		common.Log.Panicf("failed to run migrations; %s", err.Error())
	}

	common.Log.Debug("transfer core schema migrations applied")
}
