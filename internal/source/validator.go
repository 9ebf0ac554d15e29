package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spherical-ai/spherical/libs/figure-service/internal/domain"
)

// ValidatePDFPath checks that path names a readable regular file with a .pdf
// extension. A missing path is a NotFoundError; anything else wrong with it is
// a ValidationError.
func ValidatePDFPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return domain.ValidationError("file path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.NotFoundError(fmt.Sprintf("path does not exist: %s", path), err)
		}
		return domain.ValidationError(fmt.Sprintf("cannot access file: %s", path), err)
	}

	if info.IsDir() {
		return domain.ValidationError(fmt.Sprintf("path is a directory, not a file: %s", path), nil)
	}

	if !IsPDFName(path) {
		return domain.ValidationError(fmt.Sprintf("file is not a PDF (has extension %q): %s", filepath.Ext(path), path), nil)
	}

	file, err := os.Open(path)
	if err != nil {
		return domain.ValidationError(fmt.Sprintf("file is not readable: %s", path), err)
	}
	file.Close()

	return nil
}

// IsPDFName reports whether name has a .pdf extension, ignoring case.
func IsPDFName(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
