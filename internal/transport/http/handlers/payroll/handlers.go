package payrollhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"paycore/internal/domain/payroll"
	"paycore/internal/platform/jobs"
	"paycore/internal/requestctx"
	"paycore/internal/transport/http/api"
	"paycore/internal/transport/http/middleware"
	"paycore/internal/transport/http/shared"
)

type Handler struct {
	Service      *payroll.Service
	Jobs         *jobs.Service
	MaxBatchSize int
	Logger       *slog.Logger
}

func NewHandler(service *payroll.Service, jobService *jobs.Service, maxBatchSize int) *Handler {
	return &Handler{Service: service, Jobs: jobService, MaxBatchSize: maxBatchSize, Logger: slog.Default()}
}

type batchPayload struct {
	Inputs []payroll.InputPayload `json:"inputs"`
}

type incomeTaxPayload struct {
	OrganizationID         string           `json:"organizationId"`
	Period                 string           `json:"period"`
	FiscalBase             decimal.Decimal  `json:"fiscalBase"`
	BenefitsInKind         decimal.Decimal  `json:"benefitsInKind"`
	DeductibleCharges      decimal.Decimal  `json:"deductibleCharges"`
	MaritalStatus          string           `json:"maritalStatus"`
	ChildrenCount          int              `json:"childrenCount"`
	FamilyQuotientOverride *decimal.Decimal `json:"familyQuotientOverride,omitempty"`
}

type catalogLine struct {
	Code            string           `json:"code"`
	Label           string           `json:"label"`
	Category        payroll.Category `json:"category"`
	BaseDescription string           `json:"baseDescription,omitempty"`
	Mode            string           `json:"mode"`
	Taxable         bool             `json:"taxable"`
	Social          bool             `json:"social"`
	Active          bool             `json:"active"`
}

type runSubmission struct {
	Run   jobs.Run `json:"run"`
	Count int      `json:"count"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/payroll", func(r chi.Router) {
		r.Post("/bulletins", h.handleComputeBulletin)
		r.Post("/bulletins/batch", h.handleComputeBatch)
		r.Post("/bulletins/pdf", h.handlePayslipPDF)
		r.Post("/runs", h.handleSubmitRun)
		r.Get("/runs/{runID}", h.handleGetRun)
		r.Post("/income-tax", h.handleIncomeTax)
		r.Get("/catalog", h.handleCatalog)
	})
}

func (h *Handler) handleComputeBulletin(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload payroll.InputPayload
	if !decode(w, r, &payload) {
		return
	}
	payload.OrganizationID = organizationOf(r, payload.OrganizationID)
	in, err := payload.ToInput()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	bulletin, err := h.Service.Engine.Compute(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, bulletin, requestID)
}

func (h *Handler) handleComputeBatch(w http.ResponseWriter, r *http.Request) {
	var payload batchPayload
	if !decode(w, r, &payload) {
		return
	}
	inputs, rejected, ok := h.convertBatch(w, r, payload)
	if !ok {
		return
	}
	result := h.Service.Engine.ComputeMany(r.Context(), inputs)
	result.Failed = append(rejected, result.Failed...)
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePayslipPDF(w http.ResponseWriter, r *http.Request) {
	var payload payroll.InputPayload
	if !decode(w, r, &payload) {
		return
	}
	payload.OrganizationID = organizationOf(r, payload.OrganizationID)
	in, err := payload.ToInput()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	pdf, bulletin, err := h.Service.GeneratePayslipPDF(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	filename := fmt.Sprintf("bulletin-%s-%s.pdf", sanitizeFilename(bulletin.EmployeeID), bulletin.Period.String())
	api.Attachment(w, "application/pdf", filename, pdf)
}

func (h *Handler) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	if h.Jobs == nil {
		api.Fail(w, http.StatusServiceUnavailable, "runs_unavailable", "batch runs are not enabled", requestID)
		return
	}
	var payload batchPayload
	if !decode(w, r, &payload) {
		return
	}
	inputs, rejected, ok := h.convertBatch(w, r, payload)
	if !ok {
		return
	}
	organizationID := ""
	if len(inputs) > 0 {
		organizationID = inputs[0].OrganizationID
	}
	engine := h.Service.Engine
	compute := func(ctx context.Context) (any, error) {
		result := engine.ComputeMany(ctx, inputs)
		result.Failed = append(rejected, result.Failed...)
		return result, nil
	}

	// ?wait=true computes inside the request but still records the run.
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		run, err := h.Jobs.RunNow(r.Context(), jobs.JobPayrollBatch, organizationID, compute)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		api.Success(w, runSubmission{Run: run, Count: len(inputs) + len(rejected)}, requestID)
		return
	}

	run, err := h.Jobs.Enqueue(jobs.JobPayrollBatch, organizationID, compute)
	if errors.Is(err, jobs.ErrQueueFull) {
		api.Fail(w, http.StatusServiceUnavailable, "queue_full", "batch queue is full, retry later", requestID)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/payroll/runs/"+run.ID)
	api.Accepted(w, runSubmission{Run: run, Count: len(inputs) + len(rejected)}, requestID)
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	if h.Jobs == nil {
		api.Fail(w, http.StatusNotFound, "run_not_found", "run not found", requestID)
		return
	}
	run, err := h.Jobs.Get(chi.URLParam(r, "runID"))
	if errors.Is(err, jobs.ErrRunNotFound) {
		api.Fail(w, http.StatusNotFound, "run_not_found", "run not found", requestID)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, run, requestID)
}

func (h *Handler) handleIncomeTax(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload incomeTaxPayload
	if !decode(w, r, &payload) {
		return
	}

	v := shared.NewValidator()
	period, _ := v.Period("period", payload.Period)
	v.NonNegative("fiscalBase", payload.FiscalBase)
	v.NonNegative("benefitsInKind", payload.BenefitsInKind)
	v.NonNegative("deductibleCharges", payload.DeductibleCharges)
	v.Children("childrenCount", payload.ChildrenCount)
	status := v.MaritalStatus("maritalStatus", payload.MaritalStatus)
	if v.Reject(w, requestID) {
		return
	}

	snap := h.Service.Engine.LoadSnapshot(r.Context(), organizationOf(r, payload.OrganizationID), period)
	tax, err := payroll.ComputeIncomeTax(payroll.TaxInput{
		FiscalBase:        payload.FiscalBase,
		BenefitsInKind:    payload.BenefitsInKind,
		DeductibleCharges: payload.DeductibleCharges,
		Household: payroll.Household{
			MaritalStatus: status,
			Children:      payload.ChildrenCount,
			PartsOverride: payload.FamilyQuotientOverride,
		},
	}, snap.Params.TaxParameters())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, tax, requestID)
}

func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	v := shared.NewValidator()
	period, _ := v.Period("period", r.URL.Query().Get("period"))
	if v.Reject(w, requestID) {
		return
	}
	snap := h.Service.Engine.LoadSnapshot(r.Context(), organizationOf(r, r.URL.Query().Get("organizationId")), period)
	lines := make([]catalogLine, 0, len(snap.Catalog.Codes()))
	for _, code := range snap.Catalog.Codes() {
		def, _ := snap.Catalog.Lookup(code)
		lines = append(lines, catalogLine{
			Code:            def.Code,
			Label:           def.Label,
			Category:        def.Category,
			BaseDescription: def.BaseDescription,
			Mode:            payroll.ModeName(def.Mode),
			Taxable:         def.Taxable,
			Social:          def.Social,
			Active:          def.Active,
		})
	}
	api.Success(w, map[string]any{"lines": lines, "warnings": snap.Warnings}, requestID)
}

// convertBatch turns payloads into inputs; rejected payloads become failures
// so that one bad row never fails the batch.
func (h *Handler) convertBatch(w http.ResponseWriter, r *http.Request, payload batchPayload) ([]payroll.EmployeePeriodInput, []payroll.Failure, bool) {
	requestID := middleware.GetRequestID(r.Context())
	v := shared.NewValidator()
	if len(payload.Inputs) == 0 {
		v.Add("inputs", "must contain at least one employee")
	}
	if h.MaxBatchSize > 0 && len(payload.Inputs) > h.MaxBatchSize {
		v.Add("inputs", fmt.Sprintf("must contain at most %d employees", h.MaxBatchSize))
	}
	if v.Reject(w, requestID) {
		return nil, nil, false
	}

	inputs := make([]payroll.EmployeePeriodInput, 0, len(payload.Inputs))
	rejected := []payroll.Failure{}
	for _, p := range payload.Inputs {
		p.OrganizationID = organizationOf(r, p.OrganizationID)
		in, err := p.ToInput()
		if err != nil {
			rejected = append(rejected, payroll.Failure{EmployeeID: p.EmployeeID, Reason: err.Error(), Err: err})
			continue
		}
		inputs = append(inputs, in)
	}
	return inputs, rejected, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())
	if shared.RejectError(w, requestID, err) {
		return
	}
	switch {
	case errors.Is(err, payroll.ErrInvariantViolation):
		h.Logger.Error("payroll reconciliation failed", "err", err, "requestId", requestID)
		api.Fail(w, http.StatusInternalServerError, "reconciliation_failed", "net pay could not be reconciled", requestID)
	case errors.Is(err, payroll.ErrInvalidBrackets):
		h.Logger.Error("invalid tax brackets", "err", err, "requestId", requestID)
		api.Fail(w, http.StatusInternalServerError, "invalid_tax_brackets", "tax bracket table is invalid", requestID)
	default:
		h.Logger.Error("payroll request failed", "err", err, "requestId", requestID)
		api.Fail(w, http.StatusInternalServerError, "payroll_failed", "payroll computation failed", requestID)
	}
}

// organizationOf prefers the organization named in the payload over the
// X-Organization-ID header.
func organizationOf(r *http.Request, explicit string) string {
	if org := strings.TrimSpace(explicit); org != "" {
		return org
	}
	return requestctx.Organization(r.Context())
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", middleware.GetRequestID(r.Context()))
			return false
		}
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return false
	}
	return true
}

func sanitizeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
