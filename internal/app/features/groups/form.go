package groups

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	groupstore "github.com/dalemusser/grouphub/internal/app/store/groups"
	"github.com/dalemusser/grouphub/internal/app/system/inputval"
	"github.com/dalemusser/grouphub/internal/app/system/logostore"
)

// clearLogoFilename is the upload name the client sends to drop the logo.
const clearLogoFilename = "CLEAR_LOGO"

// parseForm accepts multipart and urlencoded bodies, capped at the logo
// limit plus room for the text fields.
func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.LogoMaxBytes+(1<<20))
	err := r.ParseMultipartForm(h.LogoMaxBytes)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

// logoChange reads the logo field. A missing or empty file keeps the
// current logo; a file named CLEAR_LOGO or a truthy clear_logo field clears
// it; anything else is uploaded and replaces it.
func (h *Handler) logoChange(ctx context.Context, r *http.Request) (groupstore.LogoAction, string, error) {
	if truthy(r.FormValue("clear_logo")) {
		return groupstore.LogoClear, "", nil
	}

	file, header, err := r.FormFile("logo")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return groupstore.LogoKeep, "", nil
	}
	if err != nil {
		return groupstore.LogoKeep, "", fmt.Errorf("read logo: %w", err)
	}
	defer file.Close()

	if header.Filename == clearLogoFilename {
		return groupstore.LogoClear, "", nil
	}
	if header.Size == 0 {
		return groupstore.LogoKeep, "", nil
	}
	if header.Size > h.LogoMaxBytes {
		return groupstore.LogoKeep, "", inputval.Errors{"logo": fmt.Sprintf("logo must be at most %d KB", h.LogoMaxBytes>>10)}
	}

	url, err := logostore.Upload(ctx, h.Logos, header.Filename, file, header.Header.Get("Content-Type"))
	if errors.Is(err, logostore.ErrNotImage) {
		return groupstore.LogoKeep, "", inputval.Errors{"logo": err.Error()}
	}
	if err != nil {
		return groupstore.LogoKeep, "", err
	}
	return groupstore.LogoReplace, url, nil
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
