package http

import (
	"net/http"

	applog "carteira/internal/log"
	"carteira/internal/recurrence"
	"carteira/internal/services"
)

type monthViewResponse struct {
	Month        string               `json:"month"`
	Transactions []recurrence.Visible `json:"transactions"`
}

// handleListTransactions returns the transactions visible in ?month=YYYY-MM,
// most recent first, including virtual occurrences of fixed templates.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	m, err := ParseMonthParam(r.URL.Query(), s.now())
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}

	view, err := s.datasets.MonthView(r.Context(), s.caller(r), r.PathValue("id"), m)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	if view == nil {
		view = []recurrence.Visible{}
	}
	NewJSONResponse().Data(monthViewResponse{Month: m.String(), Transactions: view}).Write(w)
}

// handleSaveTransaction adds a transaction when the payload has neither id
// nor originalId, and updates the stored record behind the id otherwise.
func (s *Server) handleSaveTransaction(w http.ResponseWriter, r *http.Request) {
	var req services.SaveRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		resp, errType := decodeFailure(err)
		s.respondError(w, r, applog.OpUpdate, err, resp, errType)
		return
	}
	req.Transaction.Description = sanitizeInput(req.Transaction.Description)
	req.Transaction.Card = sanitizeInput(req.Transaction.Card)

	creating := req.Transaction.ID == "" && req.OriginalID == ""
	op, status := applog.OpUpdate, http.StatusOK
	if creating {
		op, status = applog.OpCreate, http.StatusCreated
	}

	saved, err := s.datasets.SaveTransaction(r.Context(), s.caller(r), r.PathValue("id"), req)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	NewJSONResponse().Status(status).Data(map[string]any{"transactions": saved}).Write(w)
}

// handleDeleteTransaction deletes the stored record behind {txId}. Virtual
// occurrence ids resolve to their template; ?originalId= overrides.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	ids, err := s.datasets.DeleteTransaction(r.Context(), s.caller(r),
		r.PathValue("id"), r.PathValue("txId"), r.URL.Query().Get("originalId"))
	if err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	NewJSONResponse().Data(map[string]any{"deleted": ids}).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	m, err := ParseMonthParam(r.URL.Query(), s.now())
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}

	sum, err := s.datasets.MonthSummary(r.Context(), s.caller(r), r.PathValue("id"), m)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Data(sum).Write(w)
}
