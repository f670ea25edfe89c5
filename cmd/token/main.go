// Copyright 2026 The OpenPoll Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command token mints a development JWT for testing enforced auth mode.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/openpoll/openpoll/internal/auth"
	"github.com/openpoll/openpoll/internal/config"
)

func main() {
	var (
		subject = flag.String("subject", "dev-user", "token subject")
		tenant  = flag.String("tenant", config.DevTenantID, "tenant id claim")
		roles   = flag.String("roles", "", "comma-separated roles (e.g. admin)")
		ttl     = flag.Duration("ttl", time.Hour, "token lifetime")
		issuer  = flag.String("issuer", "", "issuer (defaults to AUTH_JWT_ISSUER)")
		secret  = flag.String("secret", "", "signing secret (defaults to AUTH_JWT_SECRET)")
	)
	flag.Parse()

	if *secret == "" {
		*secret = os.Getenv("AUTH_JWT_SECRET")
	}
	if *issuer == "" {
		*issuer = os.Getenv("AUTH_JWT_ISSUER")
	}
	if *secret == "" {
		log.Fatal("a signing secret is required (flag -secret or AUTH_JWT_SECRET)")
	}

	var roleList []string
	if *roles != "" {
		for _, r := range strings.Split(*roles, ",") {
			if r = strings.TrimSpace(r); r != "" {
				roleList = append(roleList, r)
			}
		}
	}

	token, err := auth.Mint(*secret, *issuer, *subject, *tenant, roleList, *ttl)
	if err != nil {
		log.Fatalf("failed to mint token: %v", err)
	}

	fmt.Println(token)
}
