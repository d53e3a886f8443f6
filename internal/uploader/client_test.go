// client_test.go - Tests for the outbound submission client
package uploader

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func textPart(field, name, content string) Part {
	return Part{
		Field:       field,
		FileName:    name,
		ContentType: "text/plain",
		Content:     io.NopCloser(strings.NewReader(content)),
	}
}

func TestUploadSuccess(t *testing.T) {
	var gotFields map[string][]string
	collaborator := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("collaborator failed to parse multipart body: %v", err)
		}
		gotFields = map[string][]string{}
		for field, headers := range r.MultipartForm.File {
			for _, fh := range headers {
				gotFields[field] = append(gotFields[field], fh.Filename)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message":"All files uploaded successfully","uploaded_files":{"txt":[{"filename":"a.txt"}]}}`))
	}))
	defer collaborator.Close()

	client := NewClient(collaborator.URL)
	receipt, err := client.Upload(context.Background(), []Part{
		textPart("txt", "a.txt", "hello"),
		textPart("txt", "b.txt", "world"),
		textPart("json", "c.json", "{}"),
	})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	if receipt.Message != "All files uploaded successfully" {
		t.Errorf("Unexpected message: %q", receipt.Message)
	}
	if !strings.Contains(string(receipt.UploadedFiles), "a.txt") {
		t.Errorf("Expected uploaded_files to be echoed, got %s", receipt.UploadedFiles)
	}

	if len(gotFields["txt"]) != 2 {
		t.Errorf("Expected 2 files under field txt, got %v", gotFields["txt"])
	}
	if len(gotFields["json"]) != 1 {
		t.Errorf("Expected 1 file under field json, got %v", gotFields["json"])
	}
}

func TestUploadMultiStatusIsSuccess(t *testing.T) {
	collaborator := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMultiStatus)
		w.Write([]byte(`{"message":"Upload process completed","uploaded_files":{},"errors":["Failed to upload x.txt"]}`))
	}))
	defer collaborator.Close()

	client := NewClient(collaborator.URL)
	receipt, err := client.Upload(context.Background(), []Part{textPart("txt", "x.txt", "x")})
	if err != nil {
		t.Fatalf("Expected 207 to count as success, got %v", err)
	}
	if len(receipt.Errors) != 1 {
		t.Errorf("Expected partial-failure errors to survive, got %v", receipt.Errors)
	}
}

func TestUploadRejected(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
	}{
		{
			name:        "server-supplied error",
			status:      http.StatusBadRequest,
			body:        `{"error":"No files provided"}`,
			wantMessage: "No files provided",
		},
		{
			name:        "missing error field",
			status:      http.StatusBadRequest,
			body:        `{}`,
			wantMessage: FallbackRejectionMessage,
		},
		{
			name:        "unparseable body",
			status:      http.StatusInternalServerError,
			body:        `<html>boom</html>`,
			wantMessage: FallbackRejectionMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collaborator := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer collaborator.Close()

			client := NewClient(collaborator.URL)
			_, err := client.Upload(context.Background(), []Part{textPart("txt", "a.txt", "a")})

			var rejected *RejectedError
			if !errors.As(err, &rejected) {
				t.Fatalf("Expected RejectedError, got %v", err)
			}
			if rejected.Status != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, rejected.Status)
			}
			if rejected.Message != tt.wantMessage {
				t.Errorf("Expected message %q, got %q", tt.wantMessage, rejected.Message)
			}
		})
	}
}

func TestUploadTransportFailure(t *testing.T) {
	collaborator := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	collaborator.Close() // nothing is listening anymore

	client := NewClient(collaborator.URL)
	_, err := client.Upload(context.Background(), []Part{textPart("txt", "a.txt", "a")})
	if err == nil {
		t.Fatal("Expected transport failure")
	}

	var rejected *RejectedError
	if errors.As(err, &rejected) {
		t.Errorf("Transport failure must not be classified as rejection: %v", err)
	}
}

func TestUploadMalformedSuccessBody(t *testing.T) {
	collaborator := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("not json"))
	}))
	defer collaborator.Close()

	client := NewClient(collaborator.URL)
	receipt, err := client.Upload(context.Background(), []Part{textPart("txt", "a.txt", "a")})
	if err != nil {
		t.Fatalf("Accepted upload must not fail on a malformed body: %v", err)
	}
	if receipt == nil {
		t.Fatal("Expected an empty receipt")
	}
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient("")
	if client.EndpointURL() != DefaultEndpointURL {
		t.Errorf("Expected default endpoint, got %s", client.EndpointURL())
	}
}
