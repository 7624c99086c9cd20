package reservation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiobook/internal/apperr"
	"studiobook/internal/equipment"
)

func issuesOf(t *testing.T, err error) []apperr.Issue {
	t.Helper()
	appErr := requireAppErr(t, err, apperr.KindValidation)
	assert.Equal(t, apperr.CodeValidationFailed, appErr.Code)
	assert.Equal(t, 422, appErr.Status)
	return appErr.Issues
}

func TestValidate_Valid(t *testing.T) {
	req := baseRequest()
	req.StaffIDs = []string{"staff-1"}
	req.EquipmentRequests = []EquipmentRequest{{EquipmentID: "cam", Quantity: 2}}
	req.Notes = ptr("   ")

	cmd, err := req.Validate()
	require.NoError(t, err)
	assert.Equal(t, "staff-1", cmd.StaffID)
	assert.Equal(t, 9*60, cmd.OffsetMinutes)
	assert.Equal(t, int64(3_600_000), cmd.Visible.End-cmd.Visible.Start)
	assert.Equal(t, []equipment.Requirement{{EquipmentID: "cam", Qty: 2}}, cmd.Equipment)
	assert.Empty(t, cmd.Notes)
	assert.Nil(t, cmd.Override)
}

func TestValidate_Issues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Request)
		path    string
		message string
	}{
		{"missing tenant", func(r *Request) { r.TenantID = "" }, "tenantId", "tenantId is required"},
		{"missing room", func(r *Request) { r.RoomID = "" }, "roomId", "roomId is required"},
		{"no offset", func(r *Request) { r.StartAt = "2025-10-01T10:00:00" }, "startAt", "Invalid ISO 8601 datetime"},
		{"end before start", func(r *Request) { r.EndAt = "2025-10-01T09:00:00+09:00" }, "endAt", "endAt must be later than startAt"},
		{"misaligned start", func(r *Request) { r.StartAt = "2025-10-01T10:05:00+09:00" }, "startAt", "startAt must align to 15-minute increments"},
		{"seconds", func(r *Request) { r.EndAt = "2025-10-01T11:00:30+09:00" }, "endAt", "endAt must align to 15-minute increments"},
		{"offset mismatch", func(r *Request) { r.EndAt = "2025-10-01T03:00:00+01:00" }, "endAt", "startAt and endAt must share the same timezone offset"},
		{"buffer too long", func(r *Request) {
			r.BufferOverride = &BufferOverride{BeforeMin: ptr(31), AfterMin: ptr(0)}
		}, "bufferOverride.beforeMin", "value must be between 0 and 30"},
		{"buffer missing half", func(r *Request) {
			r.BufferOverride = &BufferOverride{BeforeMin: ptr(5)}
		}, "bufferOverride.afterMin", "value is required"},
		{"duplicate equipment", func(r *Request) {
			r.EquipmentRequests = []EquipmentRequest{{EquipmentID: "cam", Quantity: 1}, {EquipmentID: "cam", Quantity: 1}}
		}, "equipmentRequests.1.equipmentId", "Duplicate equipmentId detected"},
		{"zero quantity", func(r *Request) {
			r.EquipmentRequests = []EquipmentRequest{{EquipmentID: "cam"}}
		}, "equipmentRequests.0.quantity", "quantity must be at least 1"},
		{"duplicate staff", func(r *Request) { r.StaffIDs = []string{"s", "s"} }, "staffIds.1", "staffIds contains duplicates"},
		{"long notes", func(r *Request) { r.Notes = ptr(strings.Repeat("あ", 2001)) }, "notes", "notes must be 2000 characters or less"},
		{"empty service", func(r *Request) { r.ServiceID = ptr("") }, "serviceId", "serviceId must not be empty"},
		{"multiple staff", func(r *Request) { r.StaffIDs = []string{"a", "b"} }, "staffIds", "assigning multiple staff members is not supported"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := baseRequest()
			tt.mutate(&req)
			_, err := req.Validate()
			assert.Contains(t, issuesOf(t, err), apperr.Issue{Path: tt.path, Message: tt.message})
		})
	}
}

func TestValidate_TooManyItems(t *testing.T) {
	req := baseRequest()
	for i := 0; i < 21; i++ {
		req.EquipmentRequests = append(req.EquipmentRequests, EquipmentRequest{EquipmentID: strings.Repeat("e", i+1), Quantity: 1})
	}
	_, err := req.Validate()
	assert.Contains(t, issuesOf(t, err), apperr.Issue{Path: "equipmentRequests", Message: "equipmentRequests must contain at most 20 items"})
}

func TestValidate_NotesWithinLimitAreTrimmed(t *testing.T) {
	req := baseRequest()
	req.Notes = ptr("  " + strings.Repeat("x", 2000) + "\n")
	cmd, err := req.Validate()
	require.NoError(t, err)
	assert.Len(t, cmd.Notes, 2000)
}

func TestDecodeRequest(t *testing.T) {
	req, err := DecodeRequest(strings.NewReader(`{"tenantId":"t","roomId":"r","startAt":"2025-10-01T10:00:00+09:00","endAt":"2025-10-01T11:00:00+09:00","bufferOverride":{"beforeMin":5,"afterMin":0}}`))
	require.NoError(t, err)
	require.NotNil(t, req.BufferOverride)
	assert.Equal(t, 5, *req.BufferOverride.BeforeMin)

	_, err = DecodeRequest(strings.NewReader(`{"tenantId":"t","extra":true}`))
	issues := issuesOf(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "(root)", issues[0].Path)

	_, err = DecodeRequest(strings.NewReader(`{"bufferOverride":{"beforeMin":1.5,"afterMin":0}}`))
	issuesOf(t, err)
}
