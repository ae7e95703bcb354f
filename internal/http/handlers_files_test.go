package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"

	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/store"
)

func newFilesApp(t *testing.T) (*fiber.App, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	st := store.New(db)
	app := fiber.New()
	inject := func(handler fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			c.Locals("store", st)
			return handler(c)
		}
	}
	app.Post("/v1/files", inject(fileUploadHandler))
	app.Get("/v1/files", inject(filesListHandler))
	return app, mock
}

func multipartUpload(t *testing.T, kind, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if kind != "" {
		if err := w.WriteField("kind", kind); err != nil {
			t.Fatalf("write kind field: %v", err)
		}
	}
	if filename != "" {
		fw, err := w.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		fw.Write([]byte(content))
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/files", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestFileUpload_InlineFallback(t *testing.T) {
	app, mock := newFilesApp(t)

	// No storage service in context: the file is kept inline as a data URL.
	mock.ExpectQuery(`INSERT INTO files`).
		WithArgs(sqlmock.AnyArg(), "company_info", "notes.txt", sqlmock.AnyArg(), int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "profile_id", "kind", "filename", "url", "size_bytes", "uploaded_at"}).
			AddRow(int64(1), nil, "company_info", "notes.txt", "data:text/plain;base64,Y29tcGFueSBpbmZv", int64(11), time.Now().UTC()))

	resp, err := app.Test(multipartUpload(t, "company_info", "notes.txt", "company info"), -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body FilesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.File == nil || !strings.HasPrefix(body.File.URL, "data:text/plain;base64,") {
		t.Fatalf("unexpected body: %+v", body)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestFileUpload_Validation(t *testing.T) {
	app, _ := newFilesApp(t)

	t.Run("unknown kind", func(t *testing.T) {
		resp, err := app.Test(multipartUpload(t, "resume", "cv.pdf", "x"), -1)
		if err != nil {
			t.Fatalf("app.Test error: %v", err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		resp, err := app.Test(multipartUpload(t, "company_info", "", ""), -1)
		if err != nil {
			t.Fatalf("app.Test error: %v", err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
	})
}

func TestFilesList(t *testing.T) {
	app, mock := newFilesApp(t)

	mock.ExpectQuery(`SELECT .* FROM files`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "profile_id", "kind", "filename", "url", "size_bytes", "uploaded_at"}).
			AddRow(int64(2), nil, "slide_template", "deck.pptx", "https://cdn/x.pptx", int64(1024), time.Now().UTC()))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/files?kind=slide_template", nil), -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body FilesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Files) != 1 || body.Files[0].Filename != "deck.pptx" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestFilesList_BadKind(t *testing.T) {
	app, _ := newFilesApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/files?kind=resume", nil), -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestFileContentType(t *testing.T) {
	cases := map[string]string{
		"report.PDF": "application/pdf",
		"deck.pptx":  "application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"notes.md":   "text/markdown",
		"blob":       "application/octet-stream",
	}
	for filename, want := range cases {
		if got := fileContentType(filename); got != want {
			t.Errorf("fileContentType(%q) = %q, want %q", filename, got, want)
		}
	}
}
