// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command readfile prints stored run reports, decrypting them with
// PR_MASTER_KEY when the data directory is encrypted.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/c2FmZQ/storage"
	"github.com/c2FmZQ/storage/crypto"

	"github.com/ttbt-io/pagerunner/report"
)

var (
	dataDir     = flag.String("data-dir", "data", "Directory for run reports")
	list        = flag.Bool("list", false, "List the metadata of all stored runs")
	screenshots = flag.Bool("screenshots", false, "Include screenshot data in the output")
)

func main() {
	flag.Parse()
	var masterKey crypto.MasterKey
	keyFile := filepath.Join(*dataDir, "master.key")
	if passphrase := os.Getenv("PR_MASTER_KEY"); passphrase != "" {
		var err error
		if masterKey, err = crypto.ReadMasterKey([]byte(passphrase), keyFile); err != nil {
			log.Fatalf("Failed to read master key: %v", err)
		}
	} else if _, err := os.Stat(keyFile); err == nil {
		log.Fatalf("%s exists but PR_MASTER_KEY is not set", keyFile)
	}
	store := report.NewStore(*dataDir, storage.New(*dataDir, masterKey))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if *list {
		for m, err := range store.List() {
			if err != nil {
				log.Fatalf("List: %v", err)
			}
			if err := enc.Encode(m); err != nil {
				log.Fatalf("JSON: %v", err)
			}
		}
	}

	// Arguments are run ids or paths of run files under the data directory.
	for _, arg := range flag.Args() {
		id := strings.TrimSuffix(filepath.Base(arg), ".json")
		id = strings.TrimSuffix(id, ".meta")
		r, err := store.Load(id)
		if err != nil {
			log.Printf("%s: %v", arg, err)
			continue
		}
		if !*screenshots {
			for i := range r.Steps {
				r.Steps[i].Screenshot = nil
			}
		}
		fmt.Printf("=========== %s ===========\n", id)
		if err := enc.Encode(r); err != nil {
			log.Printf("JSON: %s: %v", arg, err)
		}
	}
}
