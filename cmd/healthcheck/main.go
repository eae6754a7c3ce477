// Package main is a minimal HTTP health check binary for use in distroless
// containers. It exits 0 when the gateway's /health endpoint returns HTTP 200,
// and 1 otherwise. The target defaults to the local gateway and can be
// overridden with GATEKEEPER_HEALTHCHECK_URL. Compile with CGO_ENABLED=0 for a
// fully static binary.
package main

import (
	"net/http"
	"os"
	"time"
)

func main() {
	url := os.Getenv("GATEKEEPER_HEALTHCHECK_URL")
	if url == "" {
		url = "http://localhost:8080/health"
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		os.Exit(1)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}
