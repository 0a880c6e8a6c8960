package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/enrollment"
	"github.com/kozaktomas/face-attendance/internal/recognizer"
)

// fakeEnroller records requests and returns the configured result.
type fakeEnroller struct {
	mu       sync.Mutex
	requests []enrollment.Request
	student  *database.Student
	err      error
}

func (f *fakeEnroller) Enroll(_ context.Context, req enrollment.Request) (*database.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.student != nil {
		return f.student, nil
	}
	return &database.Student{ID: req.ID, Name: req.Name, Course: req.Course}, nil
}

// fakeStream hands out a single pre-filled subscription.
type fakeStream struct {
	mu           sync.Mutex
	ch           chan []byte
	status       recognizer.Status
	subscribed   int
	unsubscribed int
}

func newFakeStream(frames ...[]byte) *fakeStream {
	ch := make(chan []byte, len(frames))
	for _, f := range frames {
		ch <- f
	}
	close(ch)
	return &fakeStream{ch: ch}
}

func (f *fakeStream) Subscribe() *recognizer.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed++
	return &recognizer.Subscription{ID: uuid.New(), C: f.ch}
}

func (f *fakeStream) Unsubscribe(*recognizer.Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed++
}

func (f *fakeStream) Status() recognizer.Status {
	return f.status
}

// fixedClock returns a clock stuck at t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// multipartRequest builds a POST with the given form fields and an optional file.
func multipartRequest(t *testing.T, path string, fields map[string]string, file []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if file != nil {
		fw, err := mw.CreateFormFile("file", "photo.jpg")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		fw.Write(file)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d: %s", expected, recorder.Code, recorder.Body.String())
	}
}

func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	if got := recorder.Header().Get("Content-Type"); got != expected {
		t.Errorf("expected content type %q, got %q", expected, got)
	}
}

func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse JSON response %q: %v", recorder.Body.String(), err)
	}
}
