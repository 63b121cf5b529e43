package handlers

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/yoavatar/internal/utils"
)

// MediaHandler serves generated files from the output directory.
type MediaHandler struct {
	outputDir string
}

func NewMediaHandler(outputDir string) *MediaHandler {
	return &MediaHandler{outputDir: outputDir}
}

func (h *MediaHandler) Download(c *gin.Context) {
	path, err := h.resolve("MediaHandler.Download", c.Param("filename"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}

func (h *MediaHandler) Audio(c *gin.Context) {
	path, err := h.resolve("MediaHandler.Audio", c.Param("filename"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.File(path)
}

// resolve accepts a bare file name only; anything with a path element is
// treated as missing.
func (h *MediaHandler) resolve(op, name string) (string, error) {
	notFound := utils.E(utils.CodeNotFound, op, "File not found", utils.ErrNotFound)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", notFound
	}
	path := filepath.Join(h.outputDir, name)
	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return "", notFound
	}
	return path, nil
}
