package assistant_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zhouzirui/mathgpt/internal/client/assistant"
)

func TestChatSendsRequestAndDecodesResponse(t *testing.T) {
	var got assistant.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response":"42"}`))
	}))
	defer srv.Close()

	client := assistant.NewClient(srv.URL, 0)
	resp, err := client.Chat(context.Background(), assistant.ChatRequest{Prompt: "6*7", IncludeHistory: true, TopicID: "alg"})
	if err != nil {
		t.Fatalf("Chat err: %v", err)
	}
	if resp.Response == nil || *resp.Response != "42" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if got.Prompt != "6*7" || !got.IncludeHistory || got.TopicID != "alg" {
		t.Fatalf("unexpected request body: %+v", got)
	}
}

func TestChatMissingResponseField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	resp, err := assistant.NewClient(srv.URL, 0).Chat(context.Background(), assistant.ChatRequest{Prompt: "x"})
	if err != nil {
		t.Fatalf("Chat err: %v", err)
	}
	if resp.Response != nil {
		t.Fatalf("expected nil response, got %q", *resp.Response)
	}
}

func TestChatErrorStatusCarriesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"No prompt provided"}`))
	}))
	defer srv.Close()

	_, err := assistant.NewClient(srv.URL, 0).Chat(context.Background(), assistant.ChatRequest{})
	var apiErr *assistant.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *assistant.Error, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Message != "No prompt provided" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestChatMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":`))
	}))
	defer srv.Close()

	_, err := assistant.NewClient(srv.URL, 0).Chat(context.Background(), assistant.ChatRequest{Prompt: "x"})
	var apiErr *assistant.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *assistant.Error, got %v", err)
	}
	if apiErr.Message != "" {
		t.Fatalf("malformed body must not produce a server message, got %q", apiErr.Message)
	}
}

func TestChatNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := assistant.NewClient(url, 0).Chat(context.Background(), assistant.ChatRequest{Prompt: "x"})
	var apiErr *assistant.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *assistant.Error, got %v", err)
	}
	if apiErr.Err == nil {
		t.Fatal("expected wrapped network error")
	}
}
