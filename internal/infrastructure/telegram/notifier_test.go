package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPublishSummary(t *testing.T) {
	var gotPath, gotChat, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotChat = r.PostFormValue("chat_id")
		gotText = r.PostFormValue("text")
		rw.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewNotifier("123:abc", "42")
	n.apiBase = srv.URL

	if err := n.PublishSummary(context.Background(), "Session finished"); err != nil {
		t.Fatalf("PublishSummary() error = %v", err)
	}
	if gotPath != "/bot123:abc/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if gotChat != "42" {
		t.Errorf("chat_id = %q", gotChat)
	}
	if gotText != "Session finished" {
		t.Errorf("text = %q", gotText)
	}
}

func TestPublishSummaryTruncatesLongMessages(t *testing.T) {
	var gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotText = r.PostFormValue("text")
	}))
	defer srv.Close()

	n := NewNotifier("123:abc", "42")
	n.apiBase = srv.URL

	if err := n.PublishSummary(context.Background(), strings.Repeat("x", maxMessageLen+100)); err != nil {
		t.Fatalf("PublishSummary() error = %v", err)
	}
	if len(gotText) != maxMessageLen {
		t.Errorf("len(text) = %d, want %d", len(gotText), maxMessageLen)
	}
}

func TestPublishSummaryMisconfigured(t *testing.T) {
	n := NewNotifier("", "")
	if err := n.PublishSummary(context.Background(), "hi"); err == nil {
		t.Fatal("PublishSummary() expected error when unconfigured")
	}
}

func TestPublishSummaryUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewNotifier("123:abc", "42")
	n.apiBase = srv.URL

	if err := n.PublishSummary(context.Background(), "hi"); err == nil {
		t.Fatal("PublishSummary() expected error on 400")
	}
}
