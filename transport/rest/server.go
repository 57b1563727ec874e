package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

func Start(ctx context.Context, port string, handlers Handlers) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", handlers.PingHandler)
	mux.HandleFunc("POST /payments/initiate", handlers.InitiateDeposit)
	mux.HandleFunc("GET /payments/{id}/status", handlers.DepositStatus)
	mux.HandleFunc("GET /wallets/{id}/balance", handlers.WalletBalance)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
