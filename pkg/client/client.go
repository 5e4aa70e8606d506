// Package client provides OAuth2 client setup for Google APIs.
package client

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// DefaultCallbackAddr receives the consent redirect. Desktop OAuth clients
	// accept any loopback port.
	DefaultCallbackAddr = "localhost:8085"
	callbackPath        = "/callback"
	consentTimeout      = 5 * time.Minute
)

// Config locates the OAuth client secret and the cached token.
type Config struct {
	SecretFile string
	TokenFile  string
	// CallbackAddr defaults to DefaultCallbackAddr.
	CallbackAddr string
	// Out receives the consent prompt. Defaults to os.Stderr.
	Out    io.Writer
	Logger *slog.Logger
}

// New creates a new HTTP client with OAuth2 credentials read from cfg.SecretFile.
// A missing or unreadable token starts the browser consent flow and caches the
// resulting token at cfg.TokenFile.
func New(cfg Config, scope ...string) (*http.Client, error) {
	b, err := os.ReadFile(cfg.SecretFile)
	if err != nil {
		return nil, fmt.Errorf("reading client secret file: %w", err)
	}

	return NewFromJSON(b, cfg, scope...)
}

// NewFromJSON creates a new HTTP client with OAuth2 credentials from JSON content.
func NewFromJSON(secretJSON []byte, cfg Config, scope ...string) (*http.Client, error) {
	oauthCfg, err := google.ConfigFromJSON(secretJSON, scope...)
	if err != nil {
		return nil, fmt.Errorf("parsing client secret: %w", err)
	}
	c := newConsent(oauthCfg, cfg)

	tok, err := LoadToken(cfg.TokenFile)
	if err != nil {
		c.logger.Info("no usable token found, initiating OAuth flow", "path", cfg.TokenFile, "error", err)
		ctx, cancel := context.WithTimeout(context.Background(), consentTimeout)
		defer cancel()
		tok, err = c.token(ctx)
		if err != nil {
			return nil, fmt.Errorf("getting oauth token: %w", err)
		}
		if err := SaveToken(cfg.TokenFile, tok); err != nil {
			c.logger.Error("failed to save token", "path", cfg.TokenFile, "error", err)
		}
	}
	return oauthCfg.Client(context.Background(), tok), nil
}

// consent runs the browser authorisation code flow against a loopback
// callback server.
type consent struct {
	oauth  *oauth2.Config
	addr   string
	out    io.Writer
	logger *slog.Logger
}

type callbackResult struct {
	code string
	err  error
}

func newConsent(oauthCfg *oauth2.Config, cfg Config) *consent {
	c := &consent{oauth: oauthCfg, addr: cfg.CallbackAddr, out: cfg.Out, logger: cfg.Logger}
	if c.addr == "" {
		c.addr = DefaultCallbackAddr
	}
	if c.out == nil {
		c.out = os.Stderr
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

func (c *consent) token(ctx context.Context) (*oauth2.Token, error) {
	_, port, err := net.SplitHostPort(c.addr)
	if err != nil {
		return nil, fmt.Errorf("invalid callback address %q: %w", c.addr, err)
	}
	c.oauth.RedirectURL = "http://" + c.addr + callbackPath

	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("generating state token: %w", err)
	}

	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", net.JoinHostPort("", port))
	if err != nil {
		return nil, fmt.Errorf("port %s unavailable: %w", port, err)
	}

	results := make(chan callbackResult, 1)
	server := &http.Server{
		Handler:           c.callback(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		c.logger.Debug("starting OAuth callback server", "addr", c.addr)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error("callback server error", "error", err)
			c.deliver(results, callbackResult{err: err})
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			c.logger.Warn("error shutting down callback server", "error", err)
		}
	}()

	authURL := c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
	fmt.Fprintf(c.out, "\nOpening browser for Google authentication...\n")
	fmt.Fprintf(c.out, "If the browser doesn't open automatically, visit this URL:\n%s\n\n", authURL)
	if err := openBrowser(ctx, authURL); err != nil {
		c.logger.Warn("failed to open browser automatically", "error", err)
	}

	select {
	case r := <-results:
		if r.err != nil {
			return nil, fmt.Errorf("oauth callback error: %w", r.err)
		}
		tok, err := c.oauth.Exchange(ctx, r.code)
		if err != nil {
			return nil, fmt.Errorf("exchanging authorization code for token: %w", err)
		}
		c.logger.Info("oauth consent granted")
		fmt.Fprintln(c.out, "Authentication successful!")
		return tok, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("oauth flow: %w", ctx.Err())
	}
}

// callback handles the consent redirect. Only the first result is delivered.
func (c *consent) callback(state string, results chan<- callbackResult) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var rejected error
		switch {
		case q.Get("state") != state:
			rejected = errors.New("invalid state parameter")
		case q.Get("error") != "":
			rejected = fmt.Errorf("%s: %s", q.Get("error"), q.Get("error_description"))
		case q.Get("code") == "":
			rejected = errors.New("no authorization code received")
		}
		if rejected != nil {
			c.logger.Warn("oauth callback rejected", "error", rejected)
			c.deliver(results, callbackResult{err: rejected})
			http.Error(w, "Authentication failed: "+rejected.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, successPage)
		c.deliver(results, callbackResult{code: q.Get("code")})
	})
	return mux
}

func (c *consent) deliver(results chan<- callbackResult, r callbackResult) {
	select {
	case results <- r:
	default:
		c.logger.Debug("dropping repeated oauth callback")
	}
}

const successPage = `<!DOCTYPE html>
<html>
<head><title>Authentication Successful</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 20vh;">
<h1>txnwatch is authorised</h1>
<p>You can close this window and return to the terminal.</p>
</body>
</html>`

func openBrowser(ctx context.Context, url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "linux":
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return cmd.Start()
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// LoadToken reads a cached OAuth token.
func LoadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decoding token: %w", err)
	}
	return tok, nil
}

// SaveToken writes tok to path with owner-only permissions.
func SaveToken(path string, token *oauth2.Token) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating token file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	return nil
}
