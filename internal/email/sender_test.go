package email

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestResendSenderPostsMessage(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer re_test_key" {
			t.Errorf("Authorization=%q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Write([]byte(`{"id":"email_1"}`))
	}))
	defer srv.Close()

	s := NewResendSender("re_test_key")
	s.baseURL = srv.URL

	msg := ReportMessage("Reports <r@example.com>", "to@example.com", "12 Test Lane", "Move-In", "March 14, 2026", 3, []byte("%PDF-fake"))
	if err := s.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got["from"] != "Reports <r@example.com>" {
		t.Fatalf("from=%v", got["from"])
	}
	to, _ := got["to"].([]any)
	if len(to) != 1 || to[0] != "to@example.com" {
		t.Fatalf("to=%v", got["to"])
	}
	if !strings.Contains(got["subject"].(string), "12 Test Lane") {
		t.Fatalf("subject=%v", got["subject"])
	}

	atts, _ := got["attachments"].([]any)
	if len(atts) != 1 {
		t.Fatalf("attachments=%v", got["attachments"])
	}
	att := atts[0].(map[string]any)
	if att["filename"] != "Condition_Report_March_14,_2026.pdf" {
		t.Fatalf("filename=%v", att["filename"])
	}
	decoded, err := base64.StdEncoding.DecodeString(att["content"].(string))
	if err != nil || string(decoded) != "%PDF-fake" {
		t.Fatalf("attachment content=%v err=%v", att["content"], err)
	}
}

func TestResendSenderSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"invalid from address"}`))
	}))
	defer srv.Close()

	s := NewResendSender("re_test_key")
	s.baseURL = srv.URL

	err := s.Send(context.Background(), Message{From: "bad", To: "to@example.com", Subject: "x"})
	if err == nil || !strings.Contains(err.Error(), "invalid from address") {
		t.Fatalf("err=%v", err)
	}
}

func TestLogSender(t *testing.T) {
	var loggedTo, loggedSubject string
	s := NewLogSender(func(to, subject, body string) {
		loggedTo, loggedSubject = to, subject
	})
	if err := s.Send(context.Background(), Message{To: "x@example.com", Subject: "hello"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if loggedTo != "x@example.com" || loggedSubject != "hello" {
		t.Fatalf("logged %q %q", loggedTo, loggedSubject)
	}
}

func TestReportMessageDefaults(t *testing.T) {
	msg := ReportMessage("from@example.com", "to@example.com", "", "", "", 0, nil)
	if !strings.Contains(msg.Subject, "Property") {
		t.Fatalf("subject=%q", msg.Subject)
	}
	if !strings.Contains(msg.HTML, "Inspection Report") {
		t.Fatalf("html missing heading")
	}
}
