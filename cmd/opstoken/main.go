// Command opstoken mints an access token for a gate terminal or an operator
// using JWT_SECRET from the environment (or .env).
//
//	go run ./cmd/opstoken -sub gate-north-1 -role GATE -ttl 720h
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/smart-parking/internal/middleware"
	"github.com/iliyamo/smart-parking/internal/utils"
)

func main() {
	sub := flag.String("sub", "", "subject: gate terminal or operator name")
	role := flag.String("role", middleware.RoleGate, "GATE or OPERATOR")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("missing required env var: JWT_SECRET")
	}
	r := strings.ToUpper(*role)
	if r != middleware.RoleGate && r != middleware.RoleOperator {
		log.Fatalf("unknown role %q", *role)
	}

	at, err := utils.NewAccessToken(secret, *sub, r, *ttl)
	if err != nil {
		log.Fatalf("opstoken: %v", err)
	}
	fmt.Println(at.Token)
	fmt.Fprintf(os.Stderr, "expires %s\n", at.Exp.Format(time.RFC3339))
}
