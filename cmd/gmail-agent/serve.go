package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/hal9000y/gmail-agent/internal/auth"
	"github.com/hal9000y/gmail-agent/internal/tool"
)

var (
	httpAddr    string
	oauthURL    string
	enableStdio bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the MCP tools over streamable HTTP and optionally stdio",
	Long: `Start the HTTP server with the MCP endpoint (/mcp), the OAuth consent
flow (/oauth) and a health check (/healthz).

When no OAuth token is stored yet, the consent page opens in the browser.
With --stdio the MCP server also runs on stdin/stdout and stdout logging is
disabled.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		persistLogs, err := setupLogger(enableStdio, logFile)
		if err != nil {
			return err
		}
		defer persistLogs()

		if httpAddr == "" {
			httpAddr = cfg.Server.HTTPAddr
		}
		ln, err := net.Listen("tcp", httpAddr)
		if err != nil {
			return fmt.Errorf("net.Listen failed: %w", err)
		}

		redirectURL := fmt.Sprintf("http://%s/oauth", ln.Addr().String())
		if oauthURL != "" {
			redirectURL = oauthURL
		} else if cfg.OAuth.RedirectURL != "" {
			redirectURL = cfg.OAuth.RedirectURL
		}

		a, err := newAgent(cfg, redirectURL)
		if err != nil {
			_ = ln.Close()
			return err
		}
		defer a.persistToken()

		mcpServer := tool.NewServer(a.gmail, a.dec, a.drafts, a.engine)
		srv := &http.Server{
			Handler:           newRouter(a, mcpServer),
			ReadHeaderTimeout: 10 * time.Second,
		}

		if _, err := a.tok.OAuthToken(); errors.Is(err, auth.ErrTokenNotSet) {
			openBrowser(redirectURL)
		}

		stopHTTP, errHTTPCh := serveHTTP(srv, ln)
		defer stopHTTP()

		var errStdioCh <-chan error
		if enableStdio {
			var stopStdio func()
			stopStdio, errStdioCh = serveStdio(mcpServer)
			defer stopStdio()
		}

		select {
		case err := <-errHTTPCh:
			return err
		case err := <-errStdioCh:
			return err
		case <-cmd.Context().Done():
			log.Println("Shutdown signal received")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP server listen addr (default from config, localhost:0)")
	serveCmd.Flags().StringVar(&oauthURL, "oauth-url", "", "OAuth redirect URL (default http://<listen addr>/oauth)")
	serveCmd.Flags().BoolVar(&enableStdio, "stdio", false, "Enable stdio transport for MCP (disables stdout logging)")
}

func newRouter(a *agent, mcpServer *mcp.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/oauth", auth.NewHTTPHandler(a.tok))
	r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server { return mcpServer }, nil))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, tokErr := a.tok.OAuthToken()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":        "ok",
			"authenticated": tokErr == nil,
			"gmail_breaker": a.gmail.BreakerState(),
		})
	})

	return r
}

func serveStdio(srv *mcp.Server) (func(), <-chan error) {
	errStdioCh := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer close(errStdioCh)
		log.Println("Starting stdio transport")

		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			errStdioCh <- fmt.Errorf("srv.Run failed: %w", err)
		}
	}()

	return func() {
		cancel()

		<-errStdioCh
		log.Println("Stdio transport stopped")
	}, errStdioCh
}

func serveHTTP(srv *http.Server, ln net.Listener) (func(), <-chan error) {
	errHTTPCh := make(chan error, 1)
	go func() {
		defer close(errHTTPCh)

		log.Println("Starting http server on", ln.Addr().String())

		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			err = fmt.Errorf("srv.Serve failed: %w", err)
			log.Println(err)
			errHTTPCh <- err
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Println(fmt.Errorf("srv.Shutdown failed: %w", err))
		}

		<-errHTTPCh
		log.Println("HTTP server stopped")
	}, errHTTPCh
}

func openBrowser(url string) {
	url = fmt.Sprintf("%s?redirect=1", url)
	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	default:
		err = errors.New("unsupported platform")
	}

	if err != nil {
		log.Printf("Could not open browser automatically: %v; please copy and open link in the browser: %s\n", err, url)
	}
}
