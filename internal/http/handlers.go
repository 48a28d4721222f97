package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"carteira/internal/ingest"
	applog "carteira/internal/log"
)

const (
	defaultSheetRange  = "A:Z"
	sheetImportTimeout = 15 * time.Second
)

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	list, err := s.datasets.ListDatasets(r.Context(), s.caller(r))
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	NewJSONResponse().Data(map[string]any{"datasets": toDatasetResponses(list)}).Write(w)
}

type createDatasetRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateDataset(w http.ResponseWriter, r *http.Request) {
	var req createDatasetRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		resp, errType := decodeFailure(err)
		s.respondError(w, r, applog.OpCreate, err, resp, errType)
		return
	}

	ds, err := s.datasets.CreateDataset(r.Context(), s.caller(r), sanitizeInput(req.Name))
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(toDatasetResponse(ds)).Write(w)
}

// handleUploadDataset ingests a multipart "file" (.xlsx or .csv) into a new
// dataset named by the "name" field, or by the file name when blank.
func (s *Server) handleUploadDataset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.uploadMaxBytes)
	if err := r.ParseMultipartForm(s.uploadMaxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, r, applog.OpImport, err)
			return
		}
		s.respondError(w, r, applog.OpImport, err,
			BadRequestError("Formato de requisição inválido. Envie multipart/form-data."), applog.ErrorTypeValidation)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, applog.OpImport, err,
			BadRequestError("Arquivo ausente. Envie o campo \"file\"."), applog.ErrorTypeValidation)
		return
	}
	defer file.Close()

	name := sanitizeInput(r.FormValue("name"))
	if name == "" {
		name = DatasetNameFromFile(header.Filename)
	}

	logger := applog.FromContext(r.Context())
	logger.InfoContext(r.Context(), "Upload received",
		applog.FieldFileName, header.Filename,
		"size", header.Size)

	rows, err := ingest.ReadFile(header.Filename, file)
	if err != nil {
		resp, errType := ErrorFor(err)
		if resp.StatusCode() == http.StatusInternalServerError {
			resp, errType = UnprocessableEntityError("Não foi possível ler o arquivo enviado."), applog.ErrorTypeIngestion
		}
		s.respondError(w, r, applog.OpParse, err, resp, errType)
		return
	}
	s.importRows(w, r, name, rows)
}

type importSheetRequest struct {
	Name          string `json:"name"`
	SpreadsheetID string `json:"spreadsheetId"`
	Range         string `json:"range"`
}

// handleImportSheet ingests a Google Sheets range into a new dataset.
func (s *Server) handleImportSheet(w http.ResponseWriter, r *http.Request) {
	if s.sheetReader == nil {
		ServiceUnavailableError("Importação do Google Sheets não configurada.").Write(w)
		return
	}

	var req importSheetRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		resp, errType := decodeFailure(err)
		s.respondError(w, r, applog.OpImport, err, resp, errType)
		return
	}
	req.SpreadsheetID = strings.TrimSpace(req.SpreadsheetID)
	if req.SpreadsheetID == "" {
		UnprocessableEntityError("Informe o spreadsheetId da planilha.").Write(w)
		return
	}
	if req.Range = strings.TrimSpace(req.Range); req.Range == "" {
		req.Range = defaultSheetRange
	}

	ctx, cancel := context.WithTimeout(r.Context(), sheetImportTimeout)
	defer cancel()
	values, err := s.sheetReader.ReadValues(ctx, req.SpreadsheetID, req.Range)
	if err != nil {
		s.respondError(w, r, applog.OpImport, err,
			ErrorResponse(http.StatusBadGateway, "Não foi possível ler a planilha do Google Sheets."), applog.ErrorTypeNetwork)
		return
	}
	s.importRows(w, r, sanitizeInput(req.Name), ingest.FromValues(values))
}

func (s *Server) importRows(w http.ResponseWriter, r *http.Request, name string, rows [][]ingest.Cell) {
	ds, res, err := s.datasets.ImportDataset(r.Context(), s.caller(r), name, rows)
	if err != nil {
		s.fail(w, r, applog.OpImport, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(toImportResponse(ds, res)).Write(w)
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := s.datasets.GetDataset(r.Context(), s.caller(r), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Data(toDatasetResponse(ds)).Write(w)
}
