package http

import (
	"strings"
	"time"

	"carteira/internal/core"
	"carteira/internal/ingest"
)

type datasetResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"createdAt"`
}

func toDatasetResponse(ds core.Dataset) datasetResponse {
	return datasetResponse{
		ID:        ds.ID,
		Name:      ds.Name,
		Owner:     ds.Owner,
		CreatedAt: ds.CreatedAt,
	}
}

func toDatasetResponses(list []core.Dataset) []datasetResponse {
	out := make([]datasetResponse, len(list))
	for i, ds := range list {
		out[i] = toDatasetResponse(ds)
	}
	return out
}

type importResponse struct {
	Dataset  datasetResponse `json:"dataset"`
	Imported int             `json:"imported"`
	Skipped  int             `json:"skipped"`
}

func toImportResponse(ds core.Dataset, res ingest.Result) importResponse {
	return importResponse{
		Dataset:  toDatasetResponse(ds),
		Imported: len(res.Transactions),
		Skipped:  res.Skipped,
	}
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}
