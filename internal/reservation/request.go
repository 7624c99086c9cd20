package reservation

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"studiobook/internal/apperr"
	"studiobook/internal/equipment"
	"studiobook/internal/interval"
	"studiobook/internal/isotime"
)

const (
	slotGrid        = 15 * 60_000
	maxBufferMin    = 30
	maxEquipment    = 20
	maxStaff        = 20
	maxNotesLength  = 2000
	maxStaffPerSlot = 1
)

// BufferOverride replaces the service buffers for one reservation.
type BufferOverride struct {
	BeforeMin *int `json:"beforeMin"`
	AfterMin  *int `json:"afterMin"`
}

// EquipmentRequest asks for quantity units of one SKU.
type EquipmentRequest struct {
	EquipmentID string `json:"equipmentId"`
	Quantity    int    `json:"quantity"`
}

// Request is the commit request body.
type Request struct {
	TenantID          string             `json:"tenantId"`
	ServiceID         *string            `json:"serviceId,omitempty"`
	RoomID            string             `json:"roomId"`
	StartAt           string             `json:"startAt"`
	EndAt             string             `json:"endAt"`
	BufferOverride    *BufferOverride    `json:"bufferOverride,omitempty"`
	EquipmentRequests []EquipmentRequest `json:"equipmentRequests,omitempty"`
	StaffIDs          []string           `json:"staffIds,omitempty"`
	CustomerID        *string            `json:"customerId,omitempty"`
	Notes             *string            `json:"notes,omitempty"`
}

// Buffer is a resolved pair of buffers in minutes.
type Buffer struct {
	BeforeMin int `json:"beforeMin"`
	AfterMin  int `json:"afterMin"`
}

// Command is a validated, normalized Request.
type Command struct {
	TenantID      string
	ServiceID     string
	RoomID        string
	StaffID       string
	CustomerID    string
	Visible       interval.Interval
	OffsetMinutes int
	Override      *Buffer
	Equipment     []equipment.Requirement
	Notes         string
}

// DecodeRequest reads a JSON request and rejects unknown fields.
func DecodeRequest(r io.Reader) (Request, error) {
	var req Request
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		return Request{}, apperr.Validation(apperr.CodeValidationFailed, apperr.Issue{
			Path:    "(root)",
			Message: fmt.Sprintf("invalid request body: %v", err),
		})
	}
	return req, nil
}

// Validate checks shape and cross-field rules and returns the command. The
// single-staff restriction is only reported once everything else passes.
func (r Request) Validate() (Command, error) {
	var issues []apperr.Issue
	add := func(path, msg string) {
		issues = append(issues, apperr.Issue{Path: path, Message: msg})
	}

	cmd := Command{TenantID: r.TenantID, RoomID: r.RoomID}

	if r.TenantID == "" {
		add("tenantId", "tenantId is required")
	}
	if r.RoomID == "" {
		add("roomId", "roomId is required")
	}
	if r.ServiceID != nil {
		if *r.ServiceID == "" {
			add("serviceId", "serviceId must not be empty")
		}
		cmd.ServiceID = *r.ServiceID
	}
	if r.CustomerID != nil {
		if *r.CustomerID == "" {
			add("customerId", "customerId must not be empty")
		}
		cmd.CustomerID = *r.CustomerID
	}

	start, startErr := isotime.Parse(r.StartAt)
	if startErr != nil {
		add("startAt", "Invalid ISO 8601 datetime")
	}
	end, endErr := isotime.Parse(r.EndAt)
	if endErr != nil {
		add("endAt", "Invalid ISO 8601 datetime")
	}
	if startErr == nil && endErr == nil {
		if start.Millis >= end.Millis {
			add("endAt", "endAt must be later than startAt")
		}
		if !interval.IsAligned(start.Millis, slotGrid) {
			add("startAt", "startAt must align to 15-minute increments")
		}
		if !interval.IsAligned(end.Millis, slotGrid) {
			add("endAt", "endAt must align to 15-minute increments")
		}
		if start.OffsetMinutes != end.OffsetMinutes {
			add("endAt", "startAt and endAt must share the same timezone offset")
		}
		cmd.Visible = interval.Interval{Start: start.Millis, End: end.Millis}
		cmd.OffsetMinutes = start.OffsetMinutes
	}

	if o := r.BufferOverride; o != nil {
		before := checkBuffer("bufferOverride.beforeMin", o.BeforeMin, add)
		after := checkBuffer("bufferOverride.afterMin", o.AfterMin, add)
		cmd.Override = &Buffer{BeforeMin: before, AfterMin: after}
	}

	if len(r.EquipmentRequests) > maxEquipment {
		add("equipmentRequests", fmt.Sprintf("equipmentRequests must contain at most %d items", maxEquipment))
	}
	seenEquipment := make(map[string]bool, len(r.EquipmentRequests))
	for i, eq := range r.EquipmentRequests {
		if eq.EquipmentID == "" {
			add(fmt.Sprintf("equipmentRequests.%d.equipmentId", i), "equipmentId is required")
		}
		if eq.Quantity < 1 {
			add(fmt.Sprintf("equipmentRequests.%d.quantity", i), "quantity must be at least 1")
		}
		if seenEquipment[eq.EquipmentID] {
			add(fmt.Sprintf("equipmentRequests.%d.equipmentId", i), "Duplicate equipmentId detected")
		}
		seenEquipment[eq.EquipmentID] = true
		cmd.Equipment = append(cmd.Equipment, equipment.Requirement{EquipmentID: eq.EquipmentID, Qty: eq.Quantity})
	}

	if len(r.StaffIDs) > maxStaff {
		add("staffIds", fmt.Sprintf("staffIds must contain at most %d items", maxStaff))
	}
	seenStaff := make(map[string]bool, len(r.StaffIDs))
	for i, id := range r.StaffIDs {
		if id == "" {
			add(fmt.Sprintf("staffIds.%d", i), "staff id must not be empty")
		}
		if seenStaff[id] {
			add(fmt.Sprintf("staffIds.%d", i), "staffIds contains duplicates")
		}
		seenStaff[id] = true
	}

	if r.Notes != nil {
		notes := strings.TrimSpace(*r.Notes)
		if utf8.RuneCountInString(notes) > maxNotesLength {
			add("notes", "notes must be 2000 characters or less")
		}
		cmd.Notes = notes
	}

	if len(issues) > 0 {
		return Command{}, apperr.Validation(apperr.CodeValidationFailed, issues...)
	}

	if len(r.StaffIDs) > maxStaffPerSlot {
		return Command{}, apperr.Validation(apperr.CodeValidationFailed, apperr.Issue{
			Path:    "staffIds",
			Message: "assigning multiple staff members is not supported",
		})
	}
	if len(r.StaffIDs) == 1 {
		cmd.StaffID = r.StaffIDs[0]
	}
	return cmd, nil
}

func checkBuffer(path string, value *int, add func(path, msg string)) int {
	if value == nil {
		add(path, "value is required")
		return 0
	}
	if *value < 0 || *value > maxBufferMin {
		add(path, fmt.Sprintf("value must be between 0 and %d", maxBufferMin))
		return 0
	}
	return *value
}

// EquipmentIDs lists the requested SKU ids in request order.
func (c Command) EquipmentIDs() []string {
	return equipment.IDs(c.Equipment)
}

// StaffIDs returns the staff list the calendar check probes.
func (c Command) StaffIDs() []string {
	if c.StaffID == "" {
		return nil
	}
	return []string{c.StaffID}
}
