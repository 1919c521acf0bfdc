package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"go.pipelinehub.dev/internal/devops"
	"go.pipelinehub.dev/internal/pipeline"
)

// Envelope codes of the pipeline routes
const (
	CodePipelineNotFound = 1
	CodeInvalidID        = 2
)

// routes assembles the handler pipeline:
// trace -> timeout -> metrics -> error mapping -> routing, with the 404
// fallback for anything unmatched. Metrics and documentation endpoints sit
// outside the error-mapping layer.
func (s *Service) routes() http.Handler {
	r := chi.NewRouter()

	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	r.Use(Trace(s.tracer))
	r.Use(Timeout(s.requestTimeout))
	r.Use(s.metrics.Middleware)

	r.Handle("/metrics", promhttp.HandlerFor(
		prometheus.Gatherers{s.registry, prometheus.DefaultGatherer},
		promhttp.HandlerOpts{},
	))

	r.Get(SwaggerPath, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, SwaggerPath+"/index.html", http.StatusMovedPermanently)
	})
	r.Get(SwaggerPath+"/*", httpSwagger.Handler(httpSwagger.URL(OpenAPIPath)))
	r.Get(OpenAPIPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(s.openAPI)
	})

	r.Group(func(r chi.Router) {
		r.Use(MapErrors)

		r.Route("/api", func(r chi.Router) {
			r.Get("/", Handle(index))
			r.Get("/users", Handle(getUsers))

			if s.pipelines != nil {
				r.Get("/projects/{projectID}/pipelines", Handle(s.listProjectPipelines))
			}
			if s.repo != nil {
				r.Get("/pipelines", Handle(s.listPipelines))
				r.Get("/pipelines/{id}", Handle(s.getPipeline))
			}

			for _, mount := range s.extraRoutes {
				mount(r)
			}
		})
	})

	return r
}

// routeDocs returns the OpenAPI annotations of the mounted business routes.
func (s *Service) routeDocs() []routeDoc {
	docs := []routeDoc{
		{
			Method:      http.MethodGet,
			Path:        "/api",
			Tag:         "demos",
			Summary:     "Demo greeting",
			OperationID: "index",
			Response:    Response[string]{},
		},
		{
			Method:      http.MethodGet,
			Path:        "/api/users",
			Tag:         "users",
			Summary:     "User management greeting",
			OperationID: "getUsers",
			Response:    Response[string]{},
			Secured:     true,
		},
	}

	if s.pipelines != nil {
		docs = append(docs, routeDoc{
			Method:      http.MethodGet,
			Path:        "/api/projects/{projectID}/pipelines",
			Tag:         "devops",
			Summary:     "List the pipelines of a DevOps project",
			OperationID: "listProjectPipelines",
			Params:      []paramDoc{{Name: "projectID", Description: "DevOps project code", Type: "string"}},
			Response:    Response[[]devops.PipelineInfo]{},
			Secured:     true,
		})
	}

	if s.repo != nil {
		docs = append(docs,
			routeDoc{
				Method:      http.MethodGet,
				Path:        "/api/pipelines",
				Tag:         "pipelines",
				Summary:     "List stored pipelines",
				OperationID: "listPipelines",
				Response:    Response[[]pipeline.Entity]{},
				Secured:     true,
			},
			routeDoc{
				Method:      http.MethodGet,
				Path:        "/api/pipelines/{id}",
				Tag:         "pipelines",
				Summary:     "Get a stored pipeline",
				OperationID: "getPipeline",
				Params:      []paramDoc{{Name: "id", Description: "Pipeline id", Type: "integer"}},
				Response:    Response[pipeline.Entity]{},
				Secured:     true,
			},
		)
	}

	return docs
}

func index(r *http.Request) (Response[string], error) {
	return Success("Hello World"), nil
}

func getUsers(r *http.Request) (Response[string], error) {
	return Success("Hello World"), nil
}

func (s *Service) listProjectPipelines(r *http.Request) (Response[[]devops.PipelineInfo], error) {
	pipelines, err := s.pipelines.GetProjectPipelines(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		return Response[[]devops.PipelineInfo]{}, err
	}
	return Success(pipelines), nil
}

func (s *Service) listPipelines(r *http.Request) (Response[[]pipeline.Entity], error) {
	entities, err := s.repo.FindAll(r.Context())
	if err != nil {
		return Response[[]pipeline.Entity]{}, err
	}
	if entities == nil {
		entities = []pipeline.Entity{}
	}
	return Success(entities), nil
}

func (s *Service) getPipeline(r *http.Request) (Response[pipeline.Entity], error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return Failure[pipeline.Entity](CodeInvalidID, "invalid pipeline id"), nil
	}

	entity, err := s.repo.FindByID(r.Context(), id)
	if err != nil {
		return Response[pipeline.Entity]{}, err
	}
	if entity == nil {
		return Failure[pipeline.Entity](CodePipelineNotFound, "pipeline not found"), nil
	}
	return Success(*entity), nil
}
