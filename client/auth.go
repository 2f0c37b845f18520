package client

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Credentials identify a user at login.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Token is an issued access token.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// User is the authenticated account.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Login exchanges credentials for a bearer token. Pass the token to a new
// client with WithToken.
func (c *Client) Login(ctx context.Context, creds Credentials) (Token, error) {
	if err := validate.Struct(creds); err != nil {
		return Token{}, err
	}
	var out Token
	if err := c.do(ctx, "auth.login", http.MethodPost, "/auth/login", creds, &out); err != nil {
		return Token{}, err
	}
	return out, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, creds Credentials, name string) (User, error) {
	if err := validate.Struct(creds); err != nil {
		return User{}, err
	}
	body := struct {
		Credentials
		Name string `json:"name"`
	}{creds, name}

	var out User
	if err := c.do(ctx, "auth.register", http.MethodPost, "/auth/register", body, &out); err != nil {
		return User{}, err
	}
	return out, nil
}

// Me returns the user the client's token belongs to.
func (c *Client) Me(ctx context.Context) (User, error) {
	var out User
	if err := c.do(ctx, "auth.me", http.MethodGet, "/auth/me", nil, &out); err != nil {
		return User{}, err
	}
	return out, nil
}
