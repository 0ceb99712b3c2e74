// ABOUTME: Endpoint paths plus the calls that change backend state
// ABOUTME: Reads go through the query cache; login and logout manage the credential

package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/drake-forum/technoshield/internal/apierr"
)

// Endpoint paths, relative to APIPrefix.
const (
	PathDashboardSummary = "/dashboard/summary"
	PathIncidents        = "/incidents/"
	PathAlerts           = "/alerts/"
	PathLogin            = "/auth/login"
	PathLogout           = "/auth/logout"
)

// IncidentPath returns the path of a single incident.
func IncidentPath(id int) string {
	return fmt.Sprintf("%s%d", PathIncidents, id)
}

// AlertPath returns the path of a single alert.
func AlertPath(id int) string {
	return fmt.Sprintf("%s%d", PathAlerts, id)
}

// CreateIncident posts a new incident.
func (c *Client) CreateIncident(ctx context.Context, in IncidentCreate) (*Incident, error) {
	raw, err := c.Request(ctx, http.MethodPost, PathIncidents, nil, in)
	if err != nil {
		return nil, err
	}
	incident, err := Decode[Incident](raw)
	if err != nil {
		return nil, err
	}
	return &incident, nil
}

// UpdateIncident applies a partial update to an incident.
func (c *Client) UpdateIncident(ctx context.Context, id int, in IncidentUpdate) (*Incident, error) {
	raw, err := c.Request(ctx, http.MethodPut, IncidentPath(id), nil, in)
	if err != nil {
		return nil, err
	}
	incident, err := Decode[Incident](raw)
	if err != nil {
		return nil, err
	}
	return &incident, nil
}

// Login exchanges username and password for a bearer token using the
// OAuth2 password form and stores it in the session. Concurrent calls
// with the same username and password share one request. A rejected
// password does not touch the existing credential.
func (c *Client) Login(ctx context.Context, username, password string) (*Token, error) {
	v, err, _ := c.logins.Do(username+"\x00"+password, func() (any, error) {
		form := url.Values{}
		form.Set("username", username)
		form.Set("password", password)
		form.Set("grant_type", "password")

		raw, err := c.do(ctx, http.MethodPost, PathLogin, nil, form, false)
		if err != nil {
			return nil, err
		}
		tok, err := Decode[Token](raw)
		if err != nil {
			return nil, err
		}
		if tok.AccessToken == "" {
			return nil, apierr.Parse("login response has no access_token", nil)
		}
		if err := c.creds.SetCredential(tok.AccessToken); err != nil {
			return nil, fmt.Errorf("storing credential: %w", err)
		}
		return &tok, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Token), nil
}

// Logout tells the backend to end the session, then clears the local
// credential regardless of the outcome. Only a failure to clear locally is returned.
func (c *Client) Logout(ctx context.Context) error {
	if c.creds.Token() == "" {
		return c.creds.ClearCredential()
	}
	if _, err := c.do(ctx, http.MethodPost, PathLogout, nil, nil, false); err != nil {
		c.logger.Debug("backend logout failed", "error", err)
	}
	return c.creds.ClearCredential()
}
