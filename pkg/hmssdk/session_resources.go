package hmssdk

import (
	"context"
	"net/http"
	"net/url"
)

// Me returns the authenticated user.
func (s *Session) Me(ctx context.Context) (*User, error) {
	resp, err := s.doAuthRequest(ctx, request{method: http.MethodGet, path: "/auth/me"})
	if err != nil {
		return nil, err
	}

	var out MeResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}

	return &out.User, nil
}

// Logout revokes the token on the backend and always clears it locally.
// A failed revocation is logged, not returned: the local session is over
// either way. Logout does not fire the session-expired handler.
func (s *Session) Logout(ctx context.Context) error {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return err
	}

	if token != "" && !s.tokens.IsExpired(token) {
		resp, err := s.client.do(ctx, request{
			method: http.MethodPost,
			path:   "/auth/logout",
			token:  token,
		})
		if err == nil {
			err = checkStatusNoContent(resp)
		}
		if err != nil {
			s.client.logger.Warn("backend logout failed", "error", err)
		}
	}

	return s.tokens.RemoveToken(ctx)
}

// ListPatients returns all patients.
func (s *Session) ListPatients(ctx context.Context) ([]Patient, error) {
	var out []Patient
	if err := s.getJSON(ctx, "/patients", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetPatient returns one patient by ID.
func (s *Session) GetPatient(ctx context.Context, id string) (*Patient, error) {
	var out Patient
	if err := s.getJSON(ctx, "/patients/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePatient registers a patient. It is not retried.
func (s *Session) CreatePatient(ctx context.Context, in CreatePatientRequest) (*Patient, error) {
	req, err := jsonRequest(http.MethodPost, "/patients", in)
	if err != nil {
		return nil, err
	}

	resp, err := s.doAuthRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	var out Patient
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListInvoices returns all invoices.
func (s *Session) ListInvoices(ctx context.Context) ([]Invoice, error) {
	var out []Invoice
	if err := s.getJSON(ctx, "/invoices", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListStock returns the inventory.
func (s *Session) ListStock(ctx context.Context) ([]StockItem, error) {
	var out []StockItem
	if err := s.getJSON(ctx, "/stock", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListMaternityRecords returns all maternity records.
func (s *Session) ListMaternityRecords(ctx context.Context) ([]MaternityRecord, error) {
	var out []MaternityRecord
	if err := s.getJSON(ctx, "/maternity", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListHRRequests returns all HR requests.
func (s *Session) ListHRRequests(ctx context.Context) ([]HRRequest, error) {
	var out []HRRequest
	if err := s.getJSON(ctx, "/hr/requests", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Dashboard returns the admin summary.
func (s *Session) Dashboard(ctx context.Context) (*DashboardSummary, error) {
	var out DashboardSummary
	if err := s.getJSON(ctx, "/dashboard", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) getJSON(ctx context.Context, path string, target any) error {
	resp, err := s.doAuthRequest(ctx, request{method: http.MethodGet, path: path})
	if err != nil {
		return err
	}
	return decodeJSON(resp, target, http.StatusOK)
}
