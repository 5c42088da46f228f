package rest

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewHTTPErrorFlattensNestedErrors(t *testing.T) {
	body := []byte(`{
		"code": 50035,
		"message": "Invalid Form Body",
		"errors": {
			"content": {"_errors": [{"code": "BASE_TYPE_MAX_LENGTH", "message": "Must be 2000 or fewer in length."}]},
			"embeds": {"0": {"title": {"_errors": [{"code": "BASE_TYPE_REQUIRED", "message": "This field is required"}]}}}
		}
	}`)

	err := newHTTPError(http.MethodPost, "/channels/1/messages", http.StatusBadRequest, body)

	assert.Equal(t, KindBadRequest, err.Kind)
	assert.Equal(t, 50035, err.Code)
	assert.Equal(t, []string{
		"content: Must be 2000 or fewer in length.",
		"embeds.0.title: This field is required",
	}, err.Errors)
	assert.True(t, errors.Is(err, ErrBadRequest))
	assert.Contains(t, err.Error(), "Invalid Form Body")
}

func TestNewHTTPErrorWithoutBody(t *testing.T) {
	err := newHTTPError(http.MethodGet, "/users/@me", http.StatusForbidden, nil)

	assert.Equal(t, KindForbidden, err.Kind)
	assert.Empty(t, err.Errors)
	assert.Contains(t, err.Error(), "no message provided by discord")
}

func TestIsKind(t *testing.T) {
	var err error = newHTTPError(http.MethodGet, "/x", http.StatusNotFound, nil)
	assert.True(t, IsKind(err, KindNotFound))
	assert.False(t, IsKind(err, KindForbidden))
	assert.False(t, IsKind(errors.New("plain"), KindNotFound))
}
