// Command issue-token prints a signed bearer token for local testing.
//
//	go run ./cmd/issue-token -user u1 -role admin
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Shivanand-hulikatti/event-waitlist/internal/auth"
	"github.com/Shivanand-hulikatti/event-waitlist/internal/config"
)

func main() {
	user := flag.String("user", "", "user id (required)")
	email := flag.String("email", "", "email claim")
	role := flag.String("role", "", "role claim, e.g. admin")
	tier := flag.String("tier", "", "tier claim")
	flag.Parse()

	if *user == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	token, err := auth.GenerateToken(*user, *email, *role, *tier, cfg.JWTSecret)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}
