package http

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/storage"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/store"
)

var allowedFileKinds = map[string]bool{
	"company_info":   true,
	"slide_template": true,
}

func fileContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".pptx":
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt":
		return "text/plain"
	case ".md":
		return "text/markdown"
	default:
		return "application/octet-stream"
	}
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// fileUploadHandler accepts a company-info document or slide template
// as multipart form data. When object storage is unavailable the file
// is kept inline, mirroring the report fallback.
func fileUploadHandler(c *fiber.Ctx) error {
	st := c.Locals("store").(*store.Store)

	kind := c.FormValue("kind")
	if !allowedFileKinds[kind] {
		return c.Status(fiber.StatusBadRequest).JSON(FilesResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "kind must be 'company_info' or 'slide_template'",
		})
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(FilesResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "missing 'file' form field",
		})
	}

	data, err := readUpload(fh)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(FilesResponse{
			Success: false,
			Code:    "FILE_READ_FAILED",
			Error:   err.Error(),
		})
	}

	contentType := fileContentType(fh.Filename)

	var url string
	if svcVal := c.Locals("storage"); svcVal != nil {
		svc := svcVal.(*storage.Service)
		key := fmt.Sprintf("%s/%d-%s", kind, time.Now().UTC().Unix(), filepath.Base(fh.Filename))
		url, err = svc.Upload(c.Context(), key, data, contentType)
		if err != nil && err != storage.ErrUnavailable {
			return c.Status(fiber.StatusInternalServerError).JSON(FilesResponse{
				Success: false,
				Code:    "FILE_UPLOAD_FAILED",
				Error:   err.Error(),
			})
		}
	}
	if url == "" {
		url = "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
	}

	file, err := st.InsertFile(c.Context(), nil, kind, fh.Filename, url, int64(len(data)))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(FilesResponse{
			Success: false,
			Code:    "FILE_INSERT_FAILED",
			Error:   err.Error(),
		})
	}

	item := fileItem(file)
	return c.Status(fiber.StatusOK).JSON(FilesResponse{
		Success: true,
		File:    &item,
	})
}

func filesListHandler(c *fiber.Ctx) error {
	st := c.Locals("store").(*store.Store)

	kind := c.Query("kind")
	if kind != "" && !allowedFileKinds[kind] {
		return c.Status(fiber.StatusBadRequest).JSON(FilesResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "kind must be 'company_info' or 'slide_template'",
		})
	}

	files, err := st.ListFiles(c.Context(), nil, kind, 100)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(FilesResponse{
			Success: false,
			Code:    "FILE_LIST_FAILED",
			Error:   err.Error(),
		})
	}

	items := make([]FileItem, 0, len(files))
	for _, f := range files {
		items = append(items, fileItem(f))
	}

	return c.Status(fiber.StatusOK).JSON(FilesResponse{
		Success: true,
		Files:   items,
	})
}

func fileItem(f store.File) FileItem {
	return FileItem{
		ID:         f.ID,
		Kind:       f.Kind,
		Filename:   f.Filename,
		URL:        f.URL,
		SizeBytes:  f.SizeBytes,
		UploadedAt: f.UploadedAt,
	}
}
