package main

import (
	"net/http"
	"os"
	"time"
)

const defaultURL = "http://127.0.0.1:8080/api/version"

// Exits non-zero unless the version endpoint answers 200.
func main() {
	url := os.Getenv("HEALTHCHECK_URL")
	if url == "" {
		url = defaultURL
	}
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}
