package service

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/hms/pkg/hmssdk"
	"github.com/aussiebroadwan/hms/pkg/idx"
)

// HospitalService serves the clinical and administrative records. Data
// lives in memory and is seeded on startup.
type HospitalService struct {
	mu        sync.RWMutex
	patients  []hmssdk.Patient
	invoices  []hmssdk.Invoice
	stock     []hmssdk.StockItem
	maternity []hmssdk.MaternityRecord
	hr        []hmssdk.HRRequest

	now func() time.Time
}

func NewHospitalService() *HospitalService {
	return &HospitalService{now: time.Now}
}

// Seed fills the service with a small, consistent data set.
func (s *HospitalService) Seed() {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	ama := s.addPatientLocked(hmssdk.CreatePatientRequest{
		FirstName: "Ama", LastName: "Owusu", DateOfBirth: "1992-04-12",
		Gender: "F", Phone: "+233 20 555 0101", Address: "12 Ring Road, Accra",
	}, now.Add(-72*time.Hour))
	kofi := s.addPatientLocked(hmssdk.CreatePatientRequest{
		FirstName: "Kofi", LastName: "Mensah", DateOfBirth: "1978-11-30",
		Gender: "M", Phone: "+233 24 555 0199",
	}, now.Add(-48*time.Hour))
	awa := s.addPatientLocked(hmssdk.CreatePatientRequest{
		FirstName: "Awa", LastName: "Traoré", DateOfBirth: "1998-02-03",
		Gender: "F",
	}, now.Add(-24*time.Hour))

	s.invoices = []hmssdk.Invoice{
		{ID: string(idx.New()), PatientID: ama.ID, Amount: 45000, Currency: "XOF", Status: "paid", IssuedAt: now.Add(-70 * time.Hour)},
		{ID: string(idx.New()), PatientID: kofi.ID, Amount: 120000, Currency: "XOF", Status: "open", IssuedAt: now.Add(-40 * time.Hour)},
		{ID: string(idx.New()), PatientID: awa.ID, Amount: 15000, Currency: "XOF", Status: "open", IssuedAt: now.Add(-20 * time.Hour)},
	}

	s.stock = []hmssdk.StockItem{
		{ID: string(idx.New()), Name: "Paracetamol 500mg", Category: "drug", Quantity: 40, Unit: "box", ReorderLevel: 50},
		{ID: string(idx.New()), Name: "Amoxicillin 250mg", Category: "drug", Quantity: 120, Unit: "box", ReorderLevel: 30},
		{ID: string(idx.New()), Name: "Nitrile gloves", Category: "supply", Quantity: 800, Unit: "pair", ReorderLevel: 200},
		{ID: string(idx.New()), Name: "IV cannula 20G", Category: "supply", Quantity: 15, Unit: "unit", ReorderLevel: 25},
	}

	s.maternity = []hmssdk.MaternityRecord{
		{ID: string(idx.New()), PatientID: ama.ID, ExpectedDelivery: now.AddDate(0, 3, 0).Format(time.DateOnly), Status: "active", Notes: "second pregnancy"},
		{ID: string(idx.New()), PatientID: awa.ID, ExpectedDelivery: now.AddDate(0, -1, 0).Format(time.DateOnly), Status: "delivered"},
	}

	s.hr = []hmssdk.HRRequest{
		{ID: string(idx.New()), Employee: "Kwame Asante", Kind: "leave", Status: "pending", StartDate: now.AddDate(0, 0, 7).Format(time.DateOnly), EndDate: now.AddDate(0, 0, 14).Format(time.DateOnly)},
		{ID: string(idx.New()), Employee: "Fatou Diallo", Kind: "training", Status: "approved", StartDate: now.AddDate(0, 0, 3).Format(time.DateOnly)},
	}
}

func (s *HospitalService) ListPatients() []hmssdk.Patient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]hmssdk.Patient(nil), s.patients...)
}

func (s *HospitalService) GetPatient(id string) (hmssdk.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.patients {
		if p.ID == id {
			return p, nil
		}
	}
	return hmssdk.Patient{}, ErrNotFound
}

// CreatePatient validates and registers a patient.
func (s *HospitalService) CreatePatient(in hmssdk.CreatePatientRequest) (hmssdk.Patient, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	if in.FirstName == "" || in.LastName == "" {
		return hmssdk.Patient{}, fmt.Errorf("%w: first_name and last_name are required", ErrInvalidInput)
	}
	dob, err := time.Parse(time.DateOnly, in.DateOfBirth)
	if err != nil {
		return hmssdk.Patient{}, fmt.Errorf("%w: date_of_birth must be YYYY-MM-DD", ErrInvalidInput)
	}
	if dob.After(s.now()) {
		return hmssdk.Patient{}, fmt.Errorf("%w: date_of_birth is in the future", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addPatientLocked(in, s.now().UTC()), nil
}

func (s *HospitalService) addPatientLocked(in hmssdk.CreatePatientRequest, at time.Time) hmssdk.Patient {
	p := hmssdk.Patient{
		ID:          string(idx.NewAt(at)),
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		DateOfBirth: in.DateOfBirth,
		Gender:      in.Gender,
		Phone:       in.Phone,
		Address:     in.Address,
		CreatedAt:   at,
	}
	s.patients = append(s.patients, p)
	return p
}

func (s *HospitalService) ListInvoices() []hmssdk.Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]hmssdk.Invoice(nil), s.invoices...)
}

func (s *HospitalService) ListStock() []hmssdk.StockItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]hmssdk.StockItem(nil), s.stock...)
}

func (s *HospitalService) ListMaternityRecords() []hmssdk.MaternityRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]hmssdk.MaternityRecord(nil), s.maternity...)
}

func (s *HospitalService) ListHRRequests() []hmssdk.HRRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]hmssdk.HRRequest(nil), s.hr...)
}

// Dashboard aggregates the current records. Revenue counts paid invoices.
func (s *HospitalService) Dashboard() hmssdk.DashboardSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := hmssdk.DashboardSummary{Patients: len(s.patients)}
	for _, inv := range s.invoices {
		switch inv.Status {
		case "open":
			d.OpenInvoices++
		case "paid":
			d.Revenue += inv.Amount
		}
	}
	for _, item := range s.stock {
		if item.LowStock() {
			d.LowStockItems++
		}
	}
	for _, r := range s.hr {
		if r.Status == "pending" {
			d.PendingHRRequests++
		}
	}
	for _, r := range s.maternity {
		if r.Status == "active" {
			d.ActivePregnancies++
		}
	}
	return d
}
