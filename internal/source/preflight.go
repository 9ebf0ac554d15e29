package source

import (
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PageCount reads the page count of a PDF without invoking the external tool.
// Callers treat a failure as "unknown": the external tool has the final word
// on whether a file is processable.
func PageCount(path string) (int, error) {
	return api.PageCountFile(path)
}
