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
	"encoding/hex"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	dbconf "github.com/kthomas/go-db-config"

	"github.com/stealthmix/transfercore/common"
	"github.com/stealthmix/transfercore/pda"
	"github.com/stealthmix/transfercore/proof"
	"github.com/stealthmix/transfercore/transfer"
)

func main() {
	db := dbconf.DatabaseConnection()

	store := transfer.NewStore(db)
	if err := store.Migrate(); err != nil {
		common.Log.Panicf("failed to migrate transfer_states table; %s", err.Error())
	}

	var programID pda.ProgramID
	if raw := os.Getenv("PROGRAM_ID"); raw != "" {
		b, err := hex.DecodeString(raw)
		if err != nil {
			common.Log.Panicf("failed to decode PROGRAM_ID; %s", err.Error())
		}
		copy(programID[:], b)
	}

	var governanceAuthority, treasury [pda.Size]byte
	if raw := os.Getenv("GOVERNANCE_AUTHORITY"); raw != "" {
		b, _ := hex.DecodeString(raw)
		copy(governanceAuthority[:], b)
	}
	if raw := os.Getenv("TREASURY"); raw != "" {
		b, _ := hex.DecodeString(raw)
		copy(treasury[:], b)
	}

	referenceVerifier := proof.NewReferenceVerifier(os.Getenv("REFERENCE_VERIFIER_SEED"))

	machine := transfer.NewMachine(
		programID,
		store,
		transfer.NewLedger(),
		referenceVerifier,
		referenceVerifier,
		proof.NewMerkleVerifier(),
		transfer.NewNotifier(),
		governanceAuthority,
		treasury,
		transfer.Config{
			NumHops:        4,
			RealSplits:     4,
			FakeSplits:     44,
			ReserveBps:     50,
			FeeBps:         30,
			CUBudgetPerHop: 200_000,
		},
		func() int64 { return time.Now().Unix() },
	)

	r := gin.Default()
	transfer.InstallAPI(r, machine)

	go func() {
		addr := os.Getenv("PORT")
		if addr == "" {
			addr = "8080"
		}
		if err := r.Run(":" + addr); err != nil {
			common.Log.Panicf("transfer core API server terminated; %s", err.Error())
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	common.Log.Debug("transfer core API server shutting down")
}
