package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/Ahmadinit/complete-app-setup/pkg/lib/diagnostics"
)

const defaultAddress = "127.0.0.1:8799"

// client talks to a running launcher's diagnostics server.
type client struct {
	base string
	http *http.Client
}

func newClient(addr string) *client {
	if strings.TrimSpace(addr) == "" {
		addr = os.Getenv("PSICTL_ADDRESS")
	}
	if strings.TrimSpace(addr) == "" {
		addr = defaultAddress
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &client{base: strings.TrimRight(addr, "/"), http: &http.Client{}}
}

func (c *client) do(ctx context.Context, method, path string, query url.Values) (*http.Response, error) {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("launcher unreachable at %s: %w", c.base, err)
	}
	return resp, nil
}

func (c *client) status(ctx context.Context) (diagnostics.StatusResponse, error) {
	var st diagnostics.StatusResponse
	resp, err := c.do(ctx, http.MethodGet, "/status", nil)
	if err != nil {
		return st, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, http.StatusOK); err != nil {
		return st, err
	}
	return st, json.NewDecoder(resp.Body).Decode(&st)
}

// action posts to a lifecycle endpoint. A supervisor failure is carried in the
// response, not the error.
func (c *client) action(ctx context.Context, path string) (diagnostics.ActionResponse, error) {
	var out diagnostics.ActionResponse
	resp, err := c.do(ctx, http.MethodPost, path, nil)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, http.StatusOK, http.StatusAccepted, http.StatusConflict); err != nil {
		return out, err
	}
	return out, json.NewDecoder(resp.Body).Decode(&out)
}

func (c *client) logs(ctx context.Context, w io.Writer, stream string, follow bool) error {
	query := url.Values{}
	if stream != "" {
		query.Set("stream", stream)
	}
	if follow {
		query.Set("follow", "true")
	}
	resp, err := c.do(ctx, http.MethodGet, "/logs", query)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, http.StatusOK); err != nil {
		return err
	}
	_, err = io.Copy(w, resp.Body)
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func checkStatus(resp *http.Response, accepted ...int) error {
	for _, code := range accepted {
		if resp.StatusCode == code {
			return nil
		}
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = resp.Status
	}
	return fmt.Errorf("launcher returned %d: %s", resp.StatusCode, msg)
}
