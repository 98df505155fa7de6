package rest

import (
	"fmt"
	"strings"
	"time"

	"github.com/custodia-io/custodia/internal/checkpoint"
	"github.com/custodia-io/custodia/internal/store/schema"
	"github.com/custodia-io/custodia/internal/sweeper"
)

// ScanRequest is the body posted by a checkpoint terminal for each scan
type ScanRequest struct {
	// Content is the raw scanned string, forwarded untouched
	Content    string  `json:"content" binding:"required"`
	OperatorID int64   `json:"operator_id" binding:"required"`
	Notes      *string `json:"notes,omitempty"`
}

// RegisterEquipmentRequest is the body for registering an equipment and
// issuing its credential
type RegisterEquipmentRequest struct {
	SerialNumber string  `json:"serial_number" binding:"required"`
	Brand        string  `json:"brand" binding:"required"`
	Image        *string `json:"image,omitempty"`
	HolderID     int64   `json:"holder_id" binding:"required"`
}

// Validate performs request-level validation beyond binding tags
func (r *RegisterEquipmentRequest) Validate() error {
	if strings.TrimSpace(r.SerialNumber) == "" {
		return fmt.Errorf("serial_number must not be blank")
	}
	if r.HolderID <= 0 {
		return fmt.Errorf("holder_id must be positive")
	}
	return nil
}

// UpdateEquipmentRequest carries administrative equipment edits; omitted
// fields are left unchanged
type UpdateEquipmentRequest struct {
	Brand  *string `json:"brand,omitempty"`
	Image  *string `json:"image,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

// Validate rejects an empty patch
func (r *UpdateEquipmentRequest) Validate() error {
	if r.Brand == nil && r.Image == nil && r.Active == nil {
		return fmt.Errorf("at least one of brand, image, active is required")
	}
	if r.Brand != nil && strings.TrimSpace(*r.Brand) == "" {
		return fmt.Errorf("brand must not be blank")
	}
	return nil
}

// ResolveAnomalyRequest identifies the administrator resolving a flag
type ResolveAnomalyRequest struct {
	ManagerID int64 `json:"manager_id" binding:"required"`
}

// SweepRequest optionally overrides the operator the sweep's flags are
// attributed to
type SweepRequest struct {
	OperatorID int64 `json:"operator_id,omitempty"`
}

// EquipmentDTO is the API representation of an equipment
type EquipmentDTO struct {
	ID           int64   `json:"id"`
	SerialNumber string  `json:"serial_number"`
	Brand        string  `json:"brand"`
	Image        *string `json:"image,omitempty"`
	Active       bool    `json:"active"`
}

// HolderDTO is the API representation of a holder
type HolderDTO struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Document string `json:"document"`
	Active   bool   `json:"active"`
}

// SessionDTO is the API representation of a custody session
type SessionDTO struct {
	ID          int64      `json:"id"`
	EquipmentID int64      `json:"equipment_id"`
	HolderID    int64      `json:"holder_id"`
	EntryDate   time.Time  `json:"entry_date"`
	EntryTime   string     `json:"entry_time"`
	OperatorID  int64      `json:"operator_id"`
	Notes       *string    `json:"notes,omitempty"`
	ExitDate    *time.Time `json:"exit_date,omitempty"`
	ExitTime    *string    `json:"exit_time,omitempty"`
	Open        bool       `json:"open"`
}

// TokenDTO is the API representation of an issued credential. QRData is the
// sealed payload handed to the QR renderer.
type TokenDTO struct {
	ID          int64     `json:"id"`
	EquipmentID int64     `json:"equipment_id"`
	HolderID    int64     `json:"holder_id"`
	Token       string    `json:"token"`
	QRData      string    `json:"qr_data"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Active      bool      `json:"active"`
}

// AnomalyDTO is the API representation of an anomaly flag
type AnomalyDTO struct {
	ID          int64      `json:"id"`
	SessionID   int64      `json:"session_id"`
	Description string     `json:"description"`
	ManagerID   int64      `json:"manager_id"`
	Resolved    bool       `json:"resolved"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// ScanResponse is the terminal-facing outcome of one scan. Message is shown
// verbatim to the operator; Reason is the machine-readable rejection code.
type ScanResponse struct {
	Result    string        `json:"result"`
	Trust     string        `json:"trust,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Message   string        `json:"message"`
	Equipment *EquipmentDTO `json:"equipment,omitempty"`
	Holder    *HolderDTO    `json:"holder,omitempty"`
	Session   *SessionDTO   `json:"session,omitempty"`
}

// RegistrationResponse returns the registered equipment and its credential
type RegistrationResponse struct {
	Equipment EquipmentDTO `json:"equipment"`
	Token     TokenDTO     `json:"token"`
}

// EquipmentListResponse is a paginated equipment listing
type EquipmentListResponse struct {
	Items  []EquipmentDTO `json:"items"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// AnomalyListResponse is a paginated anomaly listing
type AnomalyListResponse struct {
	Items  []AnomalyDTO `json:"items"`
	Total  int64        `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// SweepResponse summarizes one on-demand anomaly sweep
type SweepResponse struct {
	RunID   string   `json:"run_id"`
	Scanned int      `json:"scanned"`
	Flagged int      `json:"flagged"`
	Errors  []string `json:"errors,omitempty"`
}

func toEquipmentDTO(e *schema.Equipment) *EquipmentDTO {
	if e == nil {
		return nil
	}
	return &EquipmentDTO{
		ID:           e.ID,
		SerialNumber: e.SerialNumber,
		Brand:        e.Brand,
		Image:        e.Image,
		Active:       e.Active,
	}
}

func toHolderDTO(h *schema.Holder) *HolderDTO {
	if h == nil {
		return nil
	}
	return &HolderDTO{
		ID:       h.ID,
		Name:     h.Name,
		Document: h.Document,
		Active:   h.Active,
	}
}

func toSessionDTO(s *schema.CustodySession) *SessionDTO {
	if s == nil {
		return nil
	}
	return &SessionDTO{
		ID:          s.ID,
		EquipmentID: s.EquipmentID,
		HolderID:    s.HolderID,
		EntryDate:   s.EntryDate,
		EntryTime:   s.EntryTime,
		OperatorID:  s.OperatorID,
		Notes:       s.Notes,
		ExitDate:    s.ExitDate,
		ExitTime:    s.ExitTime,
		Open:        s.Open(),
	}
}

func toTokenDTO(t *schema.TokenRecord) *TokenDTO {
	if t == nil {
		return nil
	}
	return &TokenDTO{
		ID:          t.ID,
		EquipmentID: t.EquipmentID,
		HolderID:    t.HolderID,
		Token:       t.Token,
		QRData:      t.QRData,
		IssuedAt:    t.IssuedAt,
		ExpiresAt:   t.ExpiresAt,
		Active:      t.Active,
	}
}

func toAnomalyDTO(a *schema.Anomaly) *AnomalyDTO {
	if a == nil {
		return nil
	}
	return &AnomalyDTO{
		ID:          a.ID,
		SessionID:   a.SessionID,
		Description: a.Description,
		ManagerID:   a.ManagerID,
		Resolved:    a.Resolved,
		CreatedAt:   a.CreatedAt,
		ResolvedAt:  a.ResolvedAt,
	}
}

func toScanResponse(result *checkpoint.Result) ScanResponse {
	return ScanResponse{
		Result:    string(result.Kind),
		Trust:     string(result.Trust),
		Reason:    string(result.Reason),
		Message:   result.Summary,
		Equipment: toEquipmentDTO(result.Equipment),
		Holder:    toHolderDTO(result.Holder),
		Session:   toSessionDTO(result.Session),
	}
}

func toSweepResponse(report *sweeper.SweepReport) SweepResponse {
	resp := SweepResponse{
		RunID:   report.RunID,
		Scanned: report.Scanned,
		Flagged: report.Flagged,
	}
	for _, err := range report.Errors {
		resp.Errors = append(resp.Errors, err.Error())
	}
	return resp
}
