package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	mapperrors "github.com/diwise/entity-mapper/pkg/errors"
	"github.com/matryer/is"
)

func TestReportErrorPicksMatchingProblem(t *testing.T) {
	is := is.New(t)

	testData := []struct {
		err    error
		status int
		title  string
	}{
		{mapperrors.NewUnknownEntityTypeError("Beach"), http.StatusNotFound, "Unknown Entity Type"},
		{mapperrors.NewNotFoundError("no such thing"), http.StatusNotFound, "Not Found"},
		{fmt.Errorf("wrapped: %w", mapperrors.NewBadRequestDataError("bad body")), http.StatusBadRequest, "Bad Request Data"},
		{fmt.Errorf("database on fire"), http.StatusInternalServerError, "Internal Error"},
	}

	for _, td := range testData {
		w := httptest.NewRecorder()
		ReportError(w, td.err, "abc123")

		is.Equal(w.Code, td.status)
		is.Equal(w.Header().Get("Content-Type"), ProblemReportContentType)

		report := struct {
			Title   string `json:"title"`
			Detail  string `json:"detail"`
			TraceID string `json:"traceID"`
		}{}
		is.NoErr(json.Unmarshal(w.Body.Bytes(), &report))
		is.Equal(report.Title, td.title)
		is.Equal(report.Detail, td.err.Error())
		is.Equal(report.TraceID, "abc123")
	}
}

func TestTraceIDIsOmittedWhenEmpty(t *testing.T) {
	is := is.New(t)

	b, err := json.Marshal(NewNotFound("gone", ""))
	is.NoErr(err)
	is.Equal(string(b), `{"type":"https://diwise.io/entity-mapper/errors/ResourceNotFound","title":"Not Found","detail":"gone"}`)
}
