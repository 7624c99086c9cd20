package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusClasses(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, Validation(CodeInvalidInput).Status)
	assert.Equal(t, http.StatusNotFound, ResourceUnavailable(CodeDisabledResource, "room", true).Status)
	assert.Equal(t, http.StatusConflict, ClosedScope("tenant", "", 1, 2).Status)
	assert.Equal(t, http.StatusConflict, Conflict("room overlaps", nil).Status)
	assert.Equal(t, http.StatusInternalServerError, Internal(CodeInternal, "boom", nil).Status)
}

func TestAsThroughWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("commit: %w", Internal(CodeInternal, "insert failed", cause))

	e, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, KindInternal, e.Kind)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsKind(err, KindInternal))
	assert.False(t, IsKind(err, KindConflict))
}

func TestResourceUnavailableMessages(t *testing.T) {
	assert.Equal(t, "room not found", ResourceUnavailable(CodeDisabledResource, "room", false).Message)
	assert.Equal(t, "staff is currently unavailable", ResourceUnavailable(CodeDisabledResource, "staff", true).Message)
}

func TestClosedScopeDetails(t *testing.T) {
	global := ClosedScope("tenant", "", 10, 20)
	assert.Nil(t, global.Details["targetId"])

	targeted := ClosedScope("room", "room-1", 10, 20)
	assert.Equal(t, "room-1", targeted.Details["targetId"])
	assert.Equal(t, int64(10), targeted.Details["start"])
}
