package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagebus/stagebus/internal/graphics/overlay"
)

func TestHandleOverlayCreate_ThenListIncludesElement(t *testing.T) {
	mgr := overlay.New(1920, 1080)
	s := New(Deps{Overlay: mgr}, zerolog.Nop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/overlay/elements/lt1",
		strings.NewReader(`{"kind":"lower_third","data":{"Title":"Breaking"}}`))
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/overlay/elements", nil)
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lt1")
}

func TestHandleOverlayCreate_DuplicateIDReturnsError(t *testing.T) {
	mgr := overlay.New(1920, 1080)
	require.NoError(t, mgr.Create("lt1", overlay.KindLowerThird, overlay.Data{}))

	s := New(Deps{Overlay: mgr}, zerolog.Nop())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/overlay/elements/lt1", strings.NewReader(`{"kind":"lower_third","data":{}}`))
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleOverlayDelete_UnknownIDReturnsError(t *testing.T) {
	mgr := overlay.New(1920, 1080)
	s := New(Deps{Overlay: mgr}, zerolog.Nop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/overlay/elements/missing", nil)
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleOverlayClear_RemovesAllElements(t *testing.T) {
	mgr := overlay.New(1920, 1080)
	_ = mgr.Create("lt1", overlay.KindLowerThird, overlay.Data{})
	s := New(Deps{Overlay: mgr}, zerolog.Nop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/overlay/elements", nil)
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, mgr.List())
}
