package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tana-dev/tana-edge/capability"
	"github.com/tana-dev/tana-edge/contract"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the contract HTTP server",
	Long: `Start an HTTP server that routes requests to contracts by path.

Routing:
  GET  /{contract}           Invoke the contract's Get entry point
  GET  /{contract}/{path}    Same, with the remaining path visible to the contract
  POST /{contract}           Invoke the contract's Post entry point with the JSON body
  POST /{contract}/{path}    Same, with the remaining path visible to the contract`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8180, "Port to listen on")
	viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
	rootCmd.AddCommand(serveCmd)
}

// invoker is the slice of Dispatcher the server needs.
type invoker interface {
	Invoke(ctx context.Context, inv contract.Invocation) (*contract.Outcome, error)
}

type server struct {
	dispatcher invoker
	timeout    time.Duration
	log        *zap.Logger
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{contract}", s.handleContract)
	mux.HandleFunc("GET /{contract}/{rest...}", s.handleContract)
	mux.HandleFunc("POST /{contract}", s.handleContract)
	mux.HandleFunc("POST /{contract}/{rest...}", s.handleContract)
	return cors.AllowAll().Handler(mux)
}

func (s *server) handleContract(w http.ResponseWriter, r *http.Request) {
	contractID := r.PathValue("contract")

	inv := contract.Invocation{
		ContractID: contractID,
		Method:     r.Method,
		Request: contract.Request{
			Path:    "/" + r.PathValue("rest"),
			Method:  r.Method,
			Query:   flatten(r.URL.Query()),
			Headers: flatten(r.Header),
			Params:  map[string]string{},
			IP:      clientIP(r),
		},
	}

	if r.Method == http.MethodPost {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}
		if len(body) > 0 {
			if !json.Valid(body) {
				http.Error(w, "invalid json body", http.StatusBadRequest)
				return
			}
			inv.Body = body
		}
	}

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	outcome, err := s.dispatcher.Invoke(ctx, inv)

	var resp contract.Response
	if err != nil {
		resp = contract.ErrorResponse(err.Error())
	} else {
		resp = outcome.Response
	}

	status := resp.Status
	if status < 100 || status > 599 {
		status = http.StatusOK
	}

	s.log.Info("invoked",
		zap.String("method", r.Method),
		zap.String("contract", contractID),
		zap.Int("status", status),
		zap.Duration("duration", time.Since(start)))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// flatten keeps the first value per key, which is what contracts see.
func flatten(values map[string][]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func runServe(cmd *cobra.Command, args []string) {
	log, err := zap.NewProduction()
	if err != nil {
		fatal(err)
	}
	defer log.Sync()

	engine, err := newEngine()
	if err != nil {
		fatal(err)
	}
	defer engine.Close()

	registry := capability.NewRegistry()
	capability.Bind(registry, services())

	dispatcher := contract.NewDispatcher(
		viper.GetString("contracts"), engine, registry,
		contract.WithLogger(log),
	)

	srv := &server{
		dispatcher: dispatcher,
		timeout:    viper.GetDuration("timeout"),
		log:        log,
	}

	addr := fmt.Sprintf(":%d", viper.GetInt("port"))
	log.Info("listening", zap.String("addr", addr), zap.String("contracts", viper.GetString("contracts")))
	if err := http.ListenAndServe(addr, srv.handler()); err != nil {
		fatal(err)
	}
}
