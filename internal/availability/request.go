package availability

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"studiobook/internal/apperr"
	"studiobook/internal/equipment"
	"studiobook/internal/interval"
	"studiobook/internal/isotime"
)

const (
	// MaxPageSize is the largest page a caller may request.
	MaxPageSize = 50
	// DefaultPageSize applies when the request omits pageSize.
	DefaultPageSize = 50
)

// Range is the requested search window. Both ends need an explicit offset.
type Range struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Request is the search request body.
type Request struct {
	TenantID         string                  `json:"tenantId"`
	Range            Range                   `json:"range"`
	ServiceID        string                  `json:"serviceId"`
	RoomID           *string                 `json:"roomId,omitempty"`
	StaffID          *string                 `json:"staffId,omitempty"`
	WantedEquipments []equipment.Requirement `json:"wantedEquipments,omitempty"`
	PageSize         *int                    `json:"pageSize,omitempty"`
}

// Query is a validated, normalized Request.
type Query struct {
	TenantID      string
	ServiceID     string
	RoomID        string
	StaffID       string
	Window        interval.Interval
	OffsetMinutes int
	PageSize      int
	Wanted        []equipment.Requirement
}

// DecodeRequest reads a JSON request and rejects unknown fields.
func DecodeRequest(r io.Reader) (Request, error) {
	var req Request
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		return Request{}, apperr.Validation(apperr.CodeInvalidInput, apperr.Issue{
			Path:    "(root)",
			Message: fmt.Sprintf("invalid request body: %v", err),
		})
	}
	return req, nil
}

// Validate checks the request and returns the normalized query. All issues
// are collected before failing.
func (r Request) Validate() (Query, error) {
	var issues []apperr.Issue
	add := func(path, msg string) {
		issues = append(issues, apperr.Issue{Path: path, Message: msg})
	}

	q := Query{
		TenantID:  strings.TrimSpace(r.TenantID),
		ServiceID: strings.TrimSpace(r.ServiceID),
		PageSize:  DefaultPageSize,
	}

	if q.TenantID == "" {
		add("tenantId", "tenantId is required")
	}
	if q.ServiceID == "" {
		add("serviceId", "serviceId is required")
	}

	from, fromErr := isotime.Parse(r.Range.From)
	if fromErr != nil {
		add("range.from", "Invalid ISO 8601 datetime")
	}
	to, toErr := isotime.Parse(r.Range.To)
	if toErr != nil {
		add("range.to", "Invalid ISO 8601 datetime")
	}
	if fromErr == nil && toErr == nil {
		if from.Millis >= to.Millis {
			add("range", "range.from must be earlier than range.to")
		} else {
			q.Window = interval.Interval{Start: from.Millis, End: to.Millis}
			q.OffsetMinutes = from.OffsetMinutes
		}
	}

	if r.RoomID != nil {
		if *r.RoomID == "" {
			add("roomId", "roomId must not be empty")
		}
		q.RoomID = *r.RoomID
	}
	if r.StaffID != nil {
		if *r.StaffID == "" {
			add("staffId", "staffId must not be empty")
		}
		q.StaffID = *r.StaffID
	}

	for i, w := range r.WantedEquipments {
		if w.EquipmentID == "" {
			add(fmt.Sprintf("wantedEquipments.%d.equipmentId", i), "equipmentId is required")
		}
		if w.Qty < 1 {
			add(fmt.Sprintf("wantedEquipments.%d.qty", i), "qty must be a positive integer")
		}
	}
	q.Wanted = append([]equipment.Requirement(nil), r.WantedEquipments...)

	if r.PageSize != nil {
		if *r.PageSize < 1 || *r.PageSize > MaxPageSize {
			add("pageSize", fmt.Sprintf("pageSize must be between 1 and %d", MaxPageSize))
		} else {
			q.PageSize = *r.PageSize
		}
	}

	if len(issues) > 0 {
		return Query{}, apperr.Validation(apperr.CodeInvalidInput, issues...)
	}
	return q, nil
}
