// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/google/uuid"
	"github.com/gorse-io/rating/common/log"
	"github.com/gorse-io/rating/config"
	"github.com/gorse-io/rating/logics"
	"github.com/gorse-io/rating/storage/cache"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	"github.com/swaggest/swgui/v4emb"
	"go.opentelemetry.io/contrib/instrumentation/github.com/emicklei/go-restful/otelrestful"
	"go.uber.org/zap"
)

const (
	apiDocsPath = "/apidocs.json"
	welcome     = "Welcome to the rating recommendation API!"
)

// RestServer serves recommendations over HTTP. The recommender is replaced as a whole, so
// a request sees either the old or the new model and dataset.
type RestServer struct {
	Config      config.ServerConfig
	CacheClient cache.Database
	WebService  *restful.WebService
	recommender atomic.Pointer[logics.Recommender]
}

// NewRestServer creates a server. cacheClient may be nil to disable caching.
func NewRestServer(cfg config.ServerConfig, cacheClient cache.Database) *RestServer {
	s := &RestServer{
		Config:      cfg,
		CacheClient: cacheClient,
		WebService:  new(restful.WebService),
	}
	s.CreateWebService()
	return s
}

// Recommender returns the current recommender, nil before the first model is stored.
func (s *RestServer) Recommender() *logics.Recommender {
	return s.recommender.Load()
}

// SetRecommender swaps in a new recommender and drops lists computed by the previous one.
func (s *RestServer) SetRecommender(ctx context.Context, recommender *logics.Recommender) error {
	s.recommender.Store(recommender)
	ModelSwapTotal.Inc()
	if s.CacheClient != nil {
		if err := s.CacheClient.Purge(ctx); err != nil {
			return errors.Trace(err)
		}
	}
	log.Logger().Info("recommender updated",
		zap.Int("n_users", recommender.Dataset().CountUsers()),
		zap.Int("n_items", recommender.Dataset().CountItems()))
	return nil
}

// Handler creates the HTTP handler serving the API, its documentation and metrics.
func (s *RestServer) Handler() http.Handler {
	container := restful.NewContainer()
	container.Add(s.WebService)
	container.Add(restfulspec.NewOpenAPIService(restfulspec.Config{
		WebServices: container.RegisteredWebServices(),
		APIPath:     apiDocsPath,
	}))
	container.Handle("/apidocs/", v4emb.New("rating", apiDocsPath, "/apidocs/"))
	container.Handle("/metrics", promhttp.Handler())
	return container
}

// Serve listens until ctx is done, then shuts down gracefully.
func (s *RestServer) Serve(ctx context.Context) error {
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port),
		Handler: s.Handler(),
	}
	errChan := make(chan error, 1)
	go func() {
		log.Logger().Info("start http server",
			zap.String("url", fmt.Sprintf("http://%s:%d", s.Config.Host, s.Config.Port)))
		errChan <- server.ListenAndServe()
	}()
	select {
	case err := <-errChan:
		return errors.Trace(err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Trace(err)
		}
		log.Logger().Info("http server stopped")
		return nil
	}
}

func LogFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	requestId := lo.CoalesceOrEmpty(req.HeaderParameter("X-Request-ID"), uuid.NewString())
	resp.Header().Set("X-Request-ID", requestId)
	start := time.Now()
	chain.ProcessFilter(req, resp)
	if req.Request.URL.Path != "/api/health" {
		log.ResponseLogger(resp).Info(fmt.Sprintf("%s %s", req.Request.Method, req.Request.URL),
			zap.Int("status_code", resp.StatusCode()),
			zap.Duration("duration", time.Since(start)))
	}
}

// CreateWebService creates web service.
func (s *RestServer) CreateWebService() {
	ws := s.WebService
	ws.Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	ws.Path("/")
	ws.Filter(otelrestful.OTelFilter("rating"))
	ws.Filter(LogFilter)

	ws.Route(ws.GET("/").To(s.index).
		Doc("Welcome message.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
		Writes(Message{}))
	ws.Route(ws.GET("/api/health").To(s.health).
		Doc("Probe whether a model is loaded.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
		Returns(http.StatusOK, "OK", HealthStatus{}).
		Returns(http.StatusServiceUnavailable, "model not loaded", HealthStatus{}).
		Writes(HealthStatus{}))
	ws.Route(ws.GET("/api/recommendations/{user-id}").To(s.getRecommendations).
		Doc("Get top-N unseen items for a user.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Param(ws.QueryParameter("n", "number of returned items").DataType("integer")).
		Returns(http.StatusOK, "OK", RecommendationList{}).
		Returns(http.StatusBadRequest, "invalid user id or n", nil).
		Returns(http.StatusNotFound, "unknown user", nil).
		Writes(RecommendationList{}))
	ws.Route(ws.GET("/api/predict/{user-id}/{item-id}").To(s.getPrediction).
		Doc("Estimate the rating of a user for an item.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Param(ws.PathParameter("item-id", "identifier of the item").DataType("integer")).
		Writes(logics.PredictionDetail{}))
}

type Message struct {
	Message string `json:"message"`
}

type HealthStatus struct {
	Ready      bool `json:"ready"`
	NumUsers   int  `json:"num_users"`
	NumItems   int  `json:"num_items"`
	NumFactors int  `json:"num_factors"`
}

type Recommendation struct {
	ItemId          int64   `json:"item_id"`
	EstimatedRating float64 `json:"estimated_rating"`
}

type RecommendationList struct {
	UserId          int64            `json:"user_id"`
	Recommendations []Recommendation `json:"recommendations"`
}

func (s *RestServer) index(_ *restful.Request, response *restful.Response) {
	Ok(response, Message{Message: welcome})
}

func (s *RestServer) health(_ *restful.Request, response *restful.Response) {
	recommender := s.recommender.Load()
	if recommender == nil {
		response.Header().Set("Access-Control-Allow-Origin", "*")
		if err := response.WriteHeaderAndJson(http.StatusServiceUnavailable, HealthStatus{}, restful.MIME_JSON); err != nil {
			log.ResponseLogger(response).Error("failed to write json", zap.Error(err))
		}
		return
	}
	Ok(response, HealthStatus{
		Ready:      true,
		NumUsers:   recommender.Dataset().CountUsers(),
		NumItems:   recommender.Dataset().CountItems(),
		NumFactors: recommender.Model().NumFactors(),
	})
}

// ParseInt parses integers from the query parameter.
func ParseInt(request *restful.Request, name string, fallback int) (value int, err error) {
	valueString := request.QueryParameter(name)
	value, err = strconv.Atoi(valueString)
	if err != nil && valueString == "" {
		value = fallback
		err = nil
	}
	return
}

func parseId(request *restful.Request, name string) (int64, error) {
	value := request.PathParameter(name)
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, errors.NotValidf("%s %q", name, value)
	}
	return id, nil
}

func (s *RestServer) getRecommendations(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	userId, err := parseId(request, "user-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	n, err := ParseInt(request, "n", s.Config.DefaultN)
	if err != nil {
		BadRequest(response, err)
		return
	}
	recommender := s.recommender.Load()
	if recommender == nil {
		ServiceUnavailable(response, errors.New("model not loaded"))
		return
	}
	start := time.Now()
	predictions, err := s.recommend(request.Request.Context(), recommender, userId, n)
	if errors.Is(err, logics.ErrUnknownUser) {
		PageNotFound(response, err)
		return
	} else if errors.Is(err, logics.ErrInvalidArgument) {
		BadRequest(response, err)
		return
	} else if err != nil {
		InternalServerError(response, err)
		return
	}
	RecommendSeconds.Observe(time.Since(start).Seconds())
	Ok(response, RecommendationList{
		UserId: userId,
		Recommendations: lo.Map(predictions, func(p logics.Prediction, _ int) Recommendation {
			return Recommendation{ItemId: p.ItemId, EstimatedRating: p.Score}
		}),
	})
}

// recommend reads through the cache. Cache failures are logged and the list is computed.
func (s *RestServer) recommend(ctx context.Context, recommender *logics.Recommender, userId int64, n int) ([]logics.Prediction, error) {
	if s.CacheClient == nil {
		return recommender.Recommend(userId, n)
	}
	predictions, ok, err := s.CacheClient.Get(ctx, userId, n)
	if err != nil {
		log.Logger().Warn("failed to read recommendation cache", zap.Int64("user_id", userId), zap.Error(err))
	} else if ok {
		CacheHitTotal.Inc()
		return predictions, nil
	}
	CacheMissTotal.Inc()
	predictions, err = recommender.Recommend(userId, n)
	if err != nil {
		return nil, err
	}
	s.cacheRecommendations(ctx, recommender, userId, n, predictions)
	return predictions, nil
}

// cacheRecommendations stores a list unless its recommender has been replaced. SetRecommender
// stores the pointer before purging, so a swap racing with Set either purges the entry or is
// seen by the second check.
func (s *RestServer) cacheRecommendations(ctx context.Context, recommender *logics.Recommender, userId int64, n int, predictions []logics.Prediction) {
	if s.recommender.Load() != recommender {
		return
	}
	if err := s.CacheClient.Set(ctx, userId, n, predictions); err != nil {
		log.Logger().Warn("failed to write recommendation cache", zap.Int64("user_id", userId), zap.Error(err))
		return
	}
	if s.recommender.Load() != recommender {
		if err := s.CacheClient.Delete(ctx, userId, n); err != nil {
			log.Logger().Warn("failed to drop stale recommendation cache", zap.Int64("user_id", userId), zap.Error(err))
		}
	}
}

func (s *RestServer) getPrediction(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	userId, err := parseId(request, "user-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	itemId, err := parseId(request, "item-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	recommender := s.recommender.Load()
	if recommender == nil {
		ServiceUnavailable(response, errors.New("model not loaded"))
		return
	}
	start := time.Now()
	prediction := recommender.PredictDetail(userId, itemId)
	PredictSeconds.Observe(time.Since(start).Seconds())
	Ok(response, prediction)
}

// BadRequest returns a bad request error.
func BadRequest(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.ResponseLogger(response).Error("bad request", zap.Error(err))
	if err = response.WriteError(http.StatusBadRequest, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// InternalServerError returns a internal server error.
func InternalServerError(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.ResponseLogger(response).Error("internal server error", zap.Error(err))
	if err = response.WriteError(http.StatusInternalServerError, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// ServiceUnavailable is returned before a model is loaded.
func ServiceUnavailable(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err = response.WriteError(http.StatusServiceUnavailable, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// PageNotFound returns a not found error.
func PageNotFound(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteError(http.StatusNotFound, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// Ok sends the content as JSON to the client.
func Ok(response *restful.Response, content any) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteAsJson(content); err != nil {
		log.ResponseLogger(response).Error("failed to write json", zap.Error(err))
	}
}

func (s *RestServer) auth(request *restful.Request, response *restful.Response) bool {
	if s.Config.APIKey == "" {
		return true
	}
	apikey := request.HeaderParameter("X-API-Key")
	if apikey == s.Config.APIKey {
		return true
	}
	log.ResponseLogger(response).Error("unauthorized", zap.String("X-API-Key", apikey))
	if err := response.WriteError(http.StatusUnauthorized, fmt.Errorf("unauthorized")); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
	return false
}
