package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/diwise/entity-mapper/internal/pkg/application/mapping"
	"github.com/diwise/entity-mapper/internal/pkg/presentation/api/auth"
	apierrors "github.com/diwise/entity-mapper/internal/pkg/presentation/api/errors"
	"github.com/diwise/entity-mapper/pkg/filter"
	"github.com/diwise/entity-mapper/pkg/mapper"
	"github.com/diwise/entity-mapper/pkg/types"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxBodySize int64 = 32 << 20

type MapEntitiesResponse struct {
	Created  int            `json:"created"`
	Updated  int            `json:"updated"`
	Deleted  int            `json:"deleted"`
	Skipped  int            `json:"skipped"`
	Entities []types.Entity `json:"entities"`
}

// NewMapEntitiesHandler handles POST requests with records that should be reconciled
// with the stored entities of a type
func NewMapEntitiesHandler(app mapping.EntityMapper, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, entityType := entityTypeFromRequest(r)

		labeler, _ := otelhttp.LabelerFromContext(ctx)
		defer func() { addLabelIfError(err, labeler) }()

		log := logging.GetFromContext(ctx)

		err = authenticator.CheckAccess(ctx, r, entityType)
		if err != nil {
			log.Warn("access not granted", "err", err.Error())
			apierrors.ReportNotFoundError(w, "not found", traceID(ctx))
			return
		}

		options, err := mapOptionsFromQuery(r)
		if err != nil {
			apierrors.ReportNewBadRequestData(w, err.Error(), traceID(ctx))
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			apierrors.ReportNewBadRequestData(w, fmt.Sprintf("unable to read request body: %s", err.Error()), traceID(ctx))
			return
		}

		records, err := app.DecodeRecords(entityType, body)
		if err != nil {
			apierrors.ReportError(w, err, traceID(ctx))
			return
		}

		result, err := app.MapEntities(ctx, entityType, records, options...)
		if err != nil {
			log.Error("failed to map entities", "err", err.Error())
			apierrors.ReportError(w, err, traceID(ctx))
			return
		}

		response := MapEntitiesResponse{
			Created:  len(result.Created),
			Updated:  len(result.Updated),
			Deleted:  len(result.Deleted),
			Skipped:  result.Skipped,
			Entities: result.Entities,
		}

		if response.Entities == nil {
			response.Entities = []types.Entity{}
		}

		writeJSON(w, http.StatusOK, response)
	})
}

// NewQueryEntitiesHandler handles GET requests for all entities of a type
func NewQueryEntitiesHandler(app mapping.EntityMapper, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, entityType := entityTypeFromRequest(r)

		labeler, _ := otelhttp.LabelerFromContext(ctx)
		defer func() { addLabelIfError(err, labeler) }()

		log := logging.GetFromContext(ctx)

		err = authenticator.CheckAccess(ctx, r, entityType)
		if err != nil {
			log.Warn("access not granted", "err", err.Error())
			apierrors.ReportNotFoundError(w, "not found", traceID(ctx))
			return
		}

		found, err := app.QueryEntities(ctx, entityType)
		if err != nil {
			log.Error("query entities failed", "err", err.Error())
			apierrors.ReportError(w, err, traceID(ctx))
			return
		}

		writeJSON(w, http.StatusOK, found)
	})
}

// NewRetrieveEntityHandler handles GET requests for a single entity, identified by
// its remote identifier
func NewRetrieveEntityHandler(app mapping.EntityMapper, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, entityType := entityTypeFromRequest(r)
		remoteID := chi.URLParam(r, "remoteId")

		labeler, _ := otelhttp.LabelerFromContext(ctx)
		defer func() { addLabelIfError(err, labeler) }()

		log := logging.GetFromContext(ctx)

		err = authenticator.CheckAccess(ctx, r, entityType)
		if err != nil {
			log.Warn("access not granted", "err", err.Error())
			apierrors.ReportNotFoundError(w, "not found", traceID(ctx))
			return
		}

		e, err := app.RetrieveEntity(ctx, entityType, remoteID)
		if err != nil {
			apierrors.ReportError(w, err, traceID(ctx))
			return
		}

		writeJSON(w, http.StatusOK, e)
	})
}

func mapOptionsFromQuery(r *http.Request) ([]mapper.MapOption, error) {
	options := []mapper.MapOption{}
	query := r.URL.Query()

	if dm := query.Get("deleteMissing"); dm != "" {
		deleteMissing, err := strconv.ParseBool(dm)
		if err != nil {
			return nil, fmt.Errorf("deleteMissing must be true or false")
		}
		options = append(options, mapper.DeleteMissing(deleteMissing))
	}

	if scope := query.Get("scope"); scope != "" {
		attr, value, ok := strings.Cut(scope, ":")
		if !ok || attr == "" {
			return nil, fmt.Errorf("scope must be of the form attribute:value")
		}
		options = append(options, mapper.Filter(filter.AttributeEquals(attr, value)))
	}

	return options, nil
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	b, err := json.Marshal(body)
	if err != nil {
		apierrors.ReportNewInternalError(w, fmt.Sprintf("failed to marshal response: %s", err.Error()), "")
		return
	}

	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(b)
}
