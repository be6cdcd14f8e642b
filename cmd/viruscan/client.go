package viruscan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lefred/mysql-component-viruscan/internal/httpapi"
)

var (
	flagAddr  string
	flagToken string
	flagUser  string
)

// addClientFlags registers the flags shared by commands that talk to a
// running server.
func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagAddr, "addr", "", "server address (default: server.addr from config)")
	cmd.Flags().StringVar(&flagToken, "token", "", "bearer token (default: $VIRUSCAN_TOKEN)")
	cmd.Flags().StringVarP(&flagUser, "user", "u", "", "user name sent in "+httpapi.UserHeader)
}

// apiError is a non-2xx server reply.
type apiError struct {
	Status  int
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return e.Message
}

type client struct {
	base  string
	token string
	user  string
	http  *http.Client
}

func newClient() (*client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	addr := pickString(flagAddr, cfg.GetServer().GetAddr())
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	if _, err := url.Parse(addr); err != nil {
		return nil, fmt.Errorf("invalid server address %q: %w", addr, err)
	}
	return &client{
		base:  strings.TrimRight(addr, "/"),
		token: pickString(flagToken, os.Getenv("VIRUSCAN_TOKEN")),
		user:  flagUser,
		http:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (c *client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.user != "" {
		req.Header.Set(httpapi.UserHeader, c.user)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		e := &apiError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(e)
		return e
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) call(ctx context.Context, path string, args []*string) (string, error) {
	var body io.Reader
	if args != nil {
		b, err := json.Marshal(httpapi.FunctionRequest{Args: args})
		if err != nil {
			return "", err
		}
		body = bytes.NewReader(b)
	}
	var resp httpapi.FunctionResponse
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return "", err
	}
	return resp.Result, nil
}

func (c *client) scan(ctx context.Context, data []byte) (string, error) {
	var resp httpapi.FunctionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/scan", bytes.NewReader(data), &resp); err != nil {
		return "", err
	}
	return resp.Result, nil
}

func (c *client) table(ctx context.Context, name string) (httpapi.TableResponse, error) {
	var resp httpapi.TableResponse
	err := c.do(ctx, http.MethodGet, "/v1/tables/"+url.PathEscape(name), nil, &resp)
	return resp, err
}

func (c *client) status(ctx context.Context) (httpapi.StatusResponse, error) {
	var resp httpapi.StatusResponse
	err := c.do(ctx, http.MethodGet, "/v1/status", nil, &resp)
	return resp, err
}
