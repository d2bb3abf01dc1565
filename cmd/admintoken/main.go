// Command admintoken mints a bearer token for POST /admin/refresh.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	authservice "github.com/FACorreiaa/salarios-minimos/internal/domain/auth/service"
	"github.com/FACorreiaa/salarios-minimos/pkg/config"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "admintoken:", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	config.LoadDotEnv()

	fs := flag.NewFlagSet("admintoken", flag.ContinueOnError)
	fs.SetOutput(stderr)
	subject := fs.String("sub", "operator", "token subject")
	role := fs.String("role", authservice.RoleAdmin, "token role")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	secret := fs.String("secret", os.Getenv("JWT_SECRET"), "signing secret (defaults to JWT_SECRET)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	tokens, err := authservice.NewTokenManager([]byte(*secret), *ttl)
	if err != nil {
		return err
	}
	token, err := tokens.Generate(*subject, *role)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, token)
	return err
}
