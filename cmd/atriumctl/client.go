package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

func runListEvents(apiURL string, limit int, out io.Writer) error {
	return getJSON(fmt.Sprintf("%s/api/v1/events/recent?limit=%d", apiURL, limit), out)
}

func runListAlerts(apiURL string, limit int, out io.Writer) error {
	return getJSON(fmt.Sprintf("%s/api/v1/events/critical-alerts?limit=%d", apiURL, limit), out)
}

func runSubmitEvent(apiURL, eventType, entity, entityID, actor, title string, out io.Writer) error {
	payload := map[string]interface{}{
		"type":     eventType,
		"entity":   entity,
		"entityId": entityID,
		"actor":    actor,
		"payload": map[string]interface{}{
			"kind": "domain",
			"data": map[string]interface{}{"title": title},
		},
	}
	body, _ := json.Marshal(payload)
	resp, err := http.Post(apiURL+"/api/v1/events", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}
	_, err = io.Copy(out, resp.Body)
	return err
}

func runSearchMemory(apiURL, query string, limit int, out io.Writer) error {
	if query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	payload := map[string]interface{}{
		"query": query,
		"limit": limit,
	}
	body, _ := json.Marshal(payload)
	resp, err := http.Post(apiURL+"/api/v1/memory/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}
	_, err = io.Copy(out, resp.Body)
	return err
}

func getJSON(url string, out io.Writer) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}
	_, err = io.Copy(out, resp.Body)
	return err
}
