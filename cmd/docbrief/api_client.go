package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// apiClient is the shared HTTP client for talking to the daemon.
var apiClient = &http.Client{
	Timeout: 10 * time.Second,
}

// doRequest performs one API call and returns the raw response body. Bodies
// are returned raw because not every endpoint speaks JSON (the report
// endpoint returns Markdown).
func doRequest(method, path string, data interface{}) ([]byte, error) {
	var reqBody io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, apiAddr+path, reqBody)
	if err != nil {
		return nil, err
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := apiClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

func apiGet(path string) ([]byte, error) {
	return doRequest(http.MethodGet, path, nil)
}

func apiPost(path string, data interface{}) ([]byte, error) {
	return doRequest(http.MethodPost, path, data)
}
