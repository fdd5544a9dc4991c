// Command mock-endpoints is a local webhook receiver for exercising the
// delivery service by hand.
package main

import (
	"log/slog"
	"net/http"
	"os"
	"strconv"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	port := getEnv("PORT", "9090")
	failuresBeforeSuccess, _ := strconv.Atoi(getEnv("FLAKY_FAILURES", "2"))

	recv := newReceiver(os.Getenv("WEBHOOK_SECRET"), failuresBeforeSuccess, logger)

	logger.Info("mock receiver starting", "port", port)
	logger.Info("routes",
		"success", "POST /webhook/success -> 200",
		"slow", "POST /webhook/slow -> 200 after 3s",
		"fail", "POST /webhook/fail -> 500",
		"flaky", "POST /webhook/flaky -> 503 until attempt "+strconv.Itoa(failuresBeforeSuccess+1),
		"redirect", "POST /webhook/redirect -> 302",
		"stats", "GET /stats",
	)

	if err := http.ListenAndServe(":"+port, recv.routes()); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
