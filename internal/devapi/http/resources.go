package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/hms/internal/devapi/service"
	"github.com/aussiebroadwan/hms/pkg/hmssdk"
	"github.com/aussiebroadwan/hms/pkg/httpx"
	"github.com/aussiebroadwan/hms/pkg/slogx"
)

// PatientsHandler serves the /api/patients routes.
type PatientsHandler struct {
	HospitalService *service.HospitalService
}

// HandleList handles GET /api/patients
//
//	@Summary		List patients
//	@Description	Returns every registered patient
//	@Tags			Patients
//	@Produce		json
//	@Success		200	{array}		hmssdk.Patient
//	@Failure		401	{object}	httpx.ErrorBody	"Unauthorized"
//	@Failure		429	{object}	httpx.ErrorBody	"Too Many Requests"
//	@Header			200	{string}	X-New-Token	"Rotated token when the presented one is close to expiry"
//	@Security		BearerAuth
//	@Router			/patients [get]
func (h *PatientsHandler) HandleList(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.HospitalService.ListPatients())
}

// HandleGet handles GET /api/patients/{id}
//
//	@Summary		Get a patient
//	@Tags			Patients
//	@Produce		json
//	@Param			id	path		string	true	"Patient ID"
//	@Success		200	{object}	hmssdk.Patient
//	@Failure		401	{object}	httpx.ErrorBody	"Unauthorized"
//	@Failure		404	{object}	httpx.ErrorBody	"Not Found"
//	@Security		BearerAuth
//	@Router			/patients/{id} [get]
func (h *PatientsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.HospitalService.GetPatient(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, slogx.FromContext(r.Context()), err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

// HandleCreate handles POST /api/patients
//
//	@Summary		Register a patient
//	@Description	Creates a patient record. Requires the admin, doctor, nurse or cashier role.
//	@Tags			Patients
//	@Accept			json
//	@Produce		json
//	@Param			body	body		hmssdk.CreatePatientRequest	true	"Patient details"
//	@Success		201		{object}	hmssdk.Patient
//	@Header			201		{string}	Location	"URL of the new patient"
//	@Failure		400		{object}	httpx.ErrorBody	"Bad Request"
//	@Failure		401		{object}	httpx.ErrorBody	"Unauthorized"
//	@Failure		403		{object}	httpx.ErrorBody	"Forbidden"
//	@Security		BearerAuth
//	@Router			/patients [post]
func (h *PatientsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	var req hmssdk.CreatePatientRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.ErrCodeInvalidRequest, err.Error())
		return
	}

	p, err := h.HospitalService.CreatePatient(req)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	log.Info("patient registered", "patient_id", p.ID)
	w.Header().Set("Location", APIPrefix+"/patients/"+p.ID)
	httpx.WriteJSON(w, http.StatusCreated, p)
}

// ListHandler serves a read-only collection. Empty collections are
// rendered as [] rather than null.
func ListHandler[T any](list func() []T) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		items := list()
		if items == nil {
			items = []T{}
		}
		httpx.WriteJSON(w, http.StatusOK, items)
	}
}

// InvoicesHandler godoc
//
//	@Summary		List invoices
//	@Description	Requires the admin, pdg or cashier role
//	@Tags			Billing
//	@Produce		json
//	@Success		200	{array}		hmssdk.Invoice
//	@Failure		401	{object}	httpx.ErrorBody	"Unauthorized"
//	@Failure		403	{object}	httpx.ErrorBody	"Forbidden"
//	@Security		BearerAuth
//	@Router			/invoices [get]
func InvoicesHandler(hs *service.HospitalService) http.HandlerFunc {
	return ListHandler(hs.ListInvoices)
}

// StockHandler godoc
//
//	@Summary		List stock items
//	@Description	Requires the admin, pdg, doctor, nurse or pharmacist role
//	@Tags			Pharmacy
//	@Produce		json
//	@Success		200	{array}		hmssdk.StockItem
//	@Failure		401	{object}	httpx.ErrorBody	"Unauthorized"
//	@Failure		403	{object}	httpx.ErrorBody	"Forbidden"
//	@Security		BearerAuth
//	@Router			/stock [get]
func StockHandler(hs *service.HospitalService) http.HandlerFunc {
	return ListHandler(hs.ListStock)
}

// MaternityHandler godoc
//
//	@Summary		List maternity records
//	@Description	Requires the admin, pdg, doctor or nurse role
//	@Tags			Maternity
//	@Produce		json
//	@Success		200	{array}		hmssdk.MaternityRecord
//	@Failure		401	{object}	httpx.ErrorBody	"Unauthorized"
//	@Failure		403	{object}	httpx.ErrorBody	"Forbidden"
//	@Security		BearerAuth
//	@Router			/maternity [get]
func MaternityHandler(hs *service.HospitalService) http.HandlerFunc {
	return ListHandler(hs.ListMaternityRecords)
}

// HRRequestsHandler godoc
//
//	@Summary		List HR requests
//	@Description	Requires the admin, pdg or hr role
//	@Tags			HR
//	@Produce		json
//	@Success		200	{array}		hmssdk.HRRequest
//	@Failure		401	{object}	httpx.ErrorBody	"Unauthorized"
//	@Failure		403	{object}	httpx.ErrorBody	"Forbidden"
//	@Security		BearerAuth
//	@Router			/hr/requests [get]
func HRRequestsHandler(hs *service.HospitalService) http.HandlerFunc {
	return ListHandler(hs.ListHRRequests)
}

// DashboardHandler godoc
//
//	@Summary		Dashboard summary
//	@Description	Counts across patients, billing, stock, HR and maternity. Requires the admin or pdg role.
//	@Tags			Dashboard
//	@Produce		json
//	@Success		200	{object}	hmssdk.DashboardSummary
//	@Failure		401	{object}	httpx.ErrorBody	"Unauthorized"
//	@Failure		403	{object}	httpx.ErrorBody	"Forbidden"
//	@Security		BearerAuth
//	@Router			/dashboard [get]
func DashboardHandler(hs *service.HospitalService) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, hs.Dashboard())
	}
}

// HealthHandler godoc
//
//	@Summary		Health check
//	@Description	Always answers 200 while the process is serving
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	hmssdk.HealthResponse	"status, version, time"
//	@Router			/health [get]
func HealthHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Uptime", time.Since(startTime).Round(time.Second).String())
		httpx.WriteJSON(w, http.StatusOK, hmssdk.HealthResponse{
			Status:  "ok",
			Version: version,
			Time:    time.Now().UTC(),
		})
	}
}

func writeServiceError(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, httpx.ErrCodeNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		httpx.WriteError(w, http.StatusBadRequest, httpx.ErrCodeInvalidRequest, err.Error())
	default:
		log.Error("request failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, httpx.ErrCodeServerError, "internal error")
	}
}
