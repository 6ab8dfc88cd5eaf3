package response

import (
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-assistant/pkg/errors"
	"github.com/kart-io/sentinel-assistant/pkg/utils/json"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var r Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	return r
}

func TestOK(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	OK(c, "History cleared")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"History cleared"}`, w.Body.String())
}

func TestFail_Errno(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	Fail(c, errors.ErrBadRequest.WithCause(stderrors.New("unexpected EOF")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Bad request", decode(t, w).Error)
	assert.Equal(t, "1000", w.Header().Get(HeaderErrorCode))
	assert.True(t, c.IsAborted())
}

func TestFail_UnknownErrorIsServerError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	Fail(c, stderrors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Server error"}`, w.Body.String())
}

func TestFail_Chinese(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	c.Request.Header.Set("Accept-Language", "zh")

	Fail(c, errors.ErrBadRequest)

	assert.Equal(t, "请求错误", decode(t, w).Error)
}
