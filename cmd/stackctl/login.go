package main

import (
	"context"
	"os"

	"github.com/smallnest/genaistack/client"
	"github.com/smallnest/genaistack/config"
)

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("login", a)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password; defaults to $STACK_PASSWORD")
	register := fs.String("register", "", "create the account with this display name first")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *password == "" {
		*password = os.Getenv("STACK_PASSWORD")
	}
	creds := client.Credentials{Email: *email, Password: *password}

	c, err := a.client()
	if err != nil {
		return err
	}
	if *register != "" {
		u, err := c.Register(ctx, creds, *register)
		if err != nil {
			return err
		}
		a.printf("registered %s (%d)\n", u.Email, u.ID)
	}

	tok, err := c.Login(ctx, creds)
	if err != nil {
		return err
	}
	a.printf("%s=%s\n", config.EnvToken, tok.AccessToken)
	return nil
}
