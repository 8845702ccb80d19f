package hmssdk

import "time"

// ============================================================================
// Authentication
// ============================================================================

// User is the authenticated principal as reported by the backend.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// MeResponse is returned by GET /auth/me. Token is only set when the backend
// rotated the caller's token.
type MeResponse struct {
	User  User   `json:"user"`
	Token string `json:"token,omitempty"`
}

// AuthSession is derived from the stored token; it is never persisted.
type AuthSession struct {
	User            *User
	Token           string
	ExpiresAt       time.Time
	IsAuthenticated bool
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string    `json:"status"`
	Version string    `json:"version,omitempty"`
	Time    time.Time `json:"time"`
}

// ============================================================================
// Hospital resources
// ============================================================================

// Patient is a registered patient.
type Patient struct {
	ID          string    `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	DateOfBirth string    `json:"date_of_birth"`
	Gender      string    `json:"gender,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Address     string    `json:"address,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreatePatientRequest is the body of POST /patients.
type CreatePatientRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth"`
	Gender      string `json:"gender,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Address     string `json:"address,omitempty"`
}

// Invoice is a billing document for a patient.
type Invoice struct {
	ID        string    `json:"id"`
	PatientID string    `json:"patient_id"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	IssuedAt  time.Time `json:"issued_at"`
}

// StockItem is a pharmacy or supply inventory line.
type StockItem struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	Quantity     int    `json:"quantity"`
	Unit         string `json:"unit"`
	ReorderLevel int    `json:"reorder_level"`
}

// LowStock reports whether the item is at or below its reorder level.
func (s StockItem) LowStock() bool {
	return s.Quantity <= s.ReorderLevel
}

// MaternityRecord follows a pregnancy.
type MaternityRecord struct {
	ID               string `json:"id"`
	PatientID        string `json:"patient_id"`
	ExpectedDelivery string `json:"expected_delivery"`
	Status           string `json:"status"`
	Notes            string `json:"notes,omitempty"`
}

// HRRequest is a staff leave or administrative request.
type HRRequest struct {
	ID        string `json:"id"`
	Employee  string `json:"employee"`
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date,omitempty"`
}

// DashboardSummary is the admin overview.
type DashboardSummary struct {
	Patients          int     `json:"patients"`
	OpenInvoices      int     `json:"open_invoices"`
	Revenue           float64 `json:"revenue"`
	LowStockItems     int     `json:"low_stock_items"`
	PendingHRRequests int     `json:"pending_hr_requests"`
	ActivePregnancies int     `json:"active_pregnancies"`
}
