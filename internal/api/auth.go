package api

import (
	"context"
	"errors"
	"net/http"
)

type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role,omitempty"`
}

type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
}

type authData struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// Login exchanges credentials for a session token. It does not set the token
// on the client; the session manager decides when a session starts.
func (c *Client) Login(ctx context.Context, email, password string) (string, *User, error) {
	var data authData
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, "login", http.MethodPost, "/auth/login", body, &data); err != nil {
		return "", nil, err
	}
	return data.checked()
}

func (c *Client) Signup(ctx context.Context, req SignupRequest) (string, *User, error) {
	var data authData
	if err := c.do(ctx, "signup", http.MethodPost, "/auth/signup", req, &data); err != nil {
		return "", nil, err
	}
	return data.checked()
}

// Me returns the user the current token belongs to.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var data authData
	if err := c.do(ctx, "me", http.MethodGet, "/auth/me", nil, &data); err != nil {
		return nil, err
	}
	if data.User == nil {
		return nil, &Error{Op: "me", Kind: KindTransient, Err: errors.New("response has no user")}
	}
	return data.User, nil
}

func (d authData) checked() (string, *User, error) {
	if d.Token == "" || d.User == nil {
		return "", nil, &Error{Op: "login", Kind: KindTransient, Err: errors.New("response has no token or user")}
	}
	return d.Token, d.User, nil
}
