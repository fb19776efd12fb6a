// fake_mlx_server stands in for mlx_lm.server in subprocess tests. It
// accepts the flags the manager passes and serves /health plus an SSE
// /v1/completions stream. MLXD_FAKE_SERVER_MODE selects misbehavior:
// "exit" fails at startup, "hang" never becomes ready.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	var model, host, port string
	flag.StringVar(&model, "model", "", "artifact path")
	flag.StringVar(&host, "host", "127.0.0.1", "host")
	flag.StringVar(&port, "port", "0", "port")
	flag.Parse()

	switch os.Getenv("MLXD_FAKE_SERVER_MODE") {
	case "exit":
		fmt.Fprintln(os.Stderr, "model load failed: unsupported architecture")
		os.Exit(1)
	case "hang":
		time.Sleep(time.Hour)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/v1/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(`data: {"choices":[{"text":"hello"}]}` + "\n\n"))
		_, _ = w.Write([]byte(`data: {"choices":[{"text":"","finish_reason":"stop"}]}` + "\n\n"))
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	})

	srv := &http.Server{Addr: fmt.Sprintf("%s:%s", host, port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
