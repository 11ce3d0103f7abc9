package responsewriter

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_ReusesRecorder(t *testing.T) {
	rr := httptest.NewRecorder()
	outer := Wrap(rr)
	inner := Wrap(outer)

	assert.Same(t, outer, inner)
	assert.Same(t, http.ResponseWriter(rr), inner.Unwrap())
}

func TestResponseWriter_RecordsStatusAndBytes(t *testing.T) {
	rr := httptest.NewRecorder()
	w := Wrap(rr)

	assert.False(t, w.Committed())
	assert.Equal(t, http.StatusOK, w.StatusCode())

	w.WriteHeader(http.StatusCreated)
	n, err := w.Write([]byte(`{"requestId":"r1"}`))
	require.NoError(t, err)

	assert.True(t, w.Committed())
	assert.Equal(t, http.StatusCreated, w.StatusCode())
	assert.Equal(t, n, w.BytesWritten())
	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestResponseWriter_FirstStatusWins(t *testing.T) {
	rr := httptest.NewRecorder()
	w := Wrap(rr)

	w.WriteHeader(http.StatusTooManyRequests)
	w.WriteHeader(http.StatusInternalServerError)

	assert.Equal(t, http.StatusTooManyRequests, w.StatusCode())
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestResponseWriter_ImplicitOK(t *testing.T) {
	rr := httptest.NewRecorder()
	w := Wrap(rr)

	_, _ = w.Write([]byte("ok"))
	_, _ = w.Write([]byte("!"))

	assert.Equal(t, http.StatusOK, w.StatusCode())
	assert.Equal(t, 3, w.BytesWritten())
	assert.Equal(t, "ok!", rr.Body.String())
}

func TestResponseWriter_Flush(t *testing.T) {
	rr := httptest.NewRecorder()
	w := Wrap(rr)

	w.Flush()

	assert.True(t, rr.Flushed)
	assert.True(t, w.Committed())
}
