package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ls1intum/thesis-management-sub000/internal/services"
	"github.com/ls1intum/thesis-management-sub000/pkg/response"
)

// paramUUID parses a path parameter, writing a 400 response when it is malformed
func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, fmt.Sprintf("invalid %s", strings.ReplaceAll(name, "_", " ")))
		return uuid.Nil, false
	}
	return id, true
}

// queryUUID parses an optional query parameter; an empty value yields nil
func queryUUID(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		response.BadRequest(c, fmt.Sprintf("invalid %s", strings.ReplaceAll(name, "_", " ")))
		return nil, false
	}
	return &id, true
}

// queryList splits a comma separated query value, also accepting repeated keys
func queryList(c *gin.Context, name string) []string {
	var out []string
	for _, raw := range c.QueryArray(name) {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

// readUpload reads a multipart file field. maxBytes bounds the read; the
// service performs the authoritative size check.
func readUpload(c *gin.Context, field string, maxBytes int64, required bool) (*services.Upload, bool) {
	header, err := c.FormFile(field)
	if err != nil {
		if !required && err == http.ErrMissingFile {
			return nil, true
		}
		response.BadRequest(c, fmt.Sprintf("file field %q is required", field))
		return nil, false
	}
	upload, err := readMultipartFile(header, maxBytes)
	if err != nil {
		response.BadRequest(c, err.Error())
		return nil, false
	}
	return upload, true
}

func readMultipartFile(header *multipart.FileHeader, maxBytes int64) (*services.Upload, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	// one byte past the limit lets the service report the oversize upload
	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return &services.Upload{Name: header.Filename, Data: data}, nil
}

func sendDocument(c *gin.Context, doc *services.Document) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Name))
	c.Data(http.StatusOK, doc.ContentType, doc.Data)
}
