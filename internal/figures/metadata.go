package figures

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spherical-ai/spherical/libs/figure-service/internal/domain"
)

// figureRecord mirrors one entry of the tool's per-PDF metadata document.
type figureRecord struct {
	Name      string          `json:"name"`
	FigType   string          `json:"figType"`
	Page      int             `json:"page"`
	Caption   string          `json:"caption"`
	RenderURL string          `json:"renderURL"`
	RenderDPI int             `json:"renderDpi"`
	Region    json.RawMessage `json:"regionBoundary,omitempty"`
}

// wrappedDocument is the layout written when the tool also emits regionless
// captions: the figures sit under a "figures" key.
type wrappedDocument struct {
	Figures []figureRecord `json:"figures"`
}

// ReadMetadata parses the metadata document at path. A missing or malformed
// document is an ExternalToolError.
func ReadMetadata(path string) ([]domain.FigureSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ExternalToolError(fmt.Sprintf("metadata document not produced: %s", path), err)
		}
		return nil, domain.ExternalToolError(fmt.Sprintf("cannot read metadata document: %s", path), err)
	}

	records, err := parseMetadata(data)
	if err != nil {
		return nil, domain.ExternalToolError(fmt.Sprintf("malformed metadata document: %s", path), err)
	}

	summaries := make([]domain.FigureSummary, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, domain.FigureSummary{
			Name:      rec.Name,
			FigType:   rec.FigType,
			Page:      rec.Page,
			Caption:   rec.Caption,
			RenderURL: rec.RenderURL,
		})
	}
	return summaries, nil
}

func parseMetadata(data []byte) ([]figureRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty document")
	}

	switch trimmed[0] {
	case '[':
		var records []figureRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, err
		}
		return records, nil
	case '{':
		var doc wrappedDocument
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, err
		}
		return doc.Figures, nil
	default:
		return nil, fmt.Errorf("unexpected leading byte %q", trimmed[0])
	}
}
