package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordReflection(t *testing.T) {
	before := testutil.ToFloat64(reflections.WithLabelValues("no_entries"))
	RecordReflection("no_entries")
	assert.Equal(t, before+1, testutil.ToFloat64(reflections.WithLabelValues("no_entries")))
}

func TestInstrumentHandlerUsesRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(InstrumentHandler)
	router.HandleFunc("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/items/{id}", "418"))

	req := httptest.NewRequest(http.MethodGet, "/items/42", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/items/{id}", "418")))
}

func TestHandlerServesRegistry(t *testing.T) {
	RecordReflection("generated")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "noticing_reflections_generated_total")
}
