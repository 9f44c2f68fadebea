package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tradevane/tradevane/src/models"
	"github.com/tradevane/tradevane/src/services"
)

var (
	engine  *services.Engine
	decoder = schema.NewDecoder()
)

type errorResponse struct {
	Type string `json:"type"`
	Msg  string `json:"message"`
}

func NewErrorResponse(errType string, message string) *errorResponse {
	return &errorResponse{
		Type: errType,
		Msg:  message,
	}
}

func setResponse(response interface{}, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(200)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		return fmt.Errorf("SetResponse: encode: %w", err)
	}

	return nil
}

func setErrorResponse(errType string, statusCode int, err error, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := NewErrorResponse(errType, err.Error())
	if encodeErr := json.NewEncoder(w).Encode(resp); encodeErr != nil {
		return encodeErr
	}

	return nil
}

// userProvider resolves the caller's account from the X-User-ID header.
func userProvider(r *http.Request) (models.TradingProvider, error) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return nil, fmt.Errorf("missing X-User-ID header")
	}

	userID, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid X-User-ID header: %w", err)
	}

	return engine.Account(userID), nil
}

func handleAccount(w http.ResponseWriter, r *http.Request) {
	provider, err := userProvider(r)
	if err != nil {
		setErrorResponse("handleAccount: failed to resolve user", 400, err, w)
		return
	}

	detail, err := provider.GetAccount(r.Context())
	if err != nil {
		setErrorResponse("handleAccount: failed to get account", 500, err, w)
		return
	}

	if err := setResponse(detail, w); err != nil {
		setErrorResponse("handleAccount: failed to set response", 500, err, w)
	}
}

type resetRequest struct {
	Balance float64 `json:"balance"`
}

func handleAccountReset(w http.ResponseWriter, r *http.Request) {
	provider, err := userProvider(r)
	if err != nil {
		setErrorResponse("handleAccountReset: failed to resolve user", 400, err, w)
		return
	}

	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		setErrorResponse("handleAccountReset: failed to decode request", 400, err, w)
		return
	}

	if err := provider.ResetAccount(r.Context(), req.Balance); err != nil {
		setErrorResponse("handleAccountReset: failed to reset account", 400, err, w)
		return
	}

	detail, err := provider.GetAccount(r.Context())
	if err != nil {
		setErrorResponse("handleAccountReset: failed to get account", 500, err, w)
		return
	}

	if err := setResponse(detail, w); err != nil {
		setErrorResponse("handleAccountReset: failed to set response", 500, err, w)
	}
}

func handlePositions(w http.ResponseWriter, r *http.Request) {
	provider, err := userProvider(r)
	if err != nil {
		setErrorResponse("handlePositions: failed to resolve user", 400, err, w)
		return
	}

	positions, err := provider.GetPositions(r.Context())
	if err != nil {
		setErrorResponse("handlePositions: failed to get positions", 500, err, w)
		return
	}

	if positions == nil {
		positions = []*models.PositionDetail{}
	}

	if err := setResponse(positions, w); err != nil {
		setErrorResponse("handlePositions: failed to set response", 500, err, w)
	}
}

type listOrdersQuery struct {
	Status string `schema:"status"`
	Limit  int    `schema:"limit"`
}

func handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		handleListOrders(w, r)
	case http.MethodPost:
		handleSubmitOrder(w, r)
	default:
		setErrorResponse("handleOrders: method not allowed", 405, fmt.Errorf("method %s not allowed", r.Method), w)
	}
}

func handleListOrders(w http.ResponseWriter, r *http.Request) {
	provider, err := userProvider(r)
	if err != nil {
		setErrorResponse("handleListOrders: failed to resolve user", 400, err, w)
		return
	}

	var query listOrdersQuery
	if err := decoder.Decode(&query, r.URL.Query()); err != nil {
		setErrorResponse("handleListOrders: failed to decode query", 400, err, w)
		return
	}

	orders, err := provider.ListOrders(r.Context(), query.Status, query.Limit)
	if err != nil {
		setErrorResponse("handleListOrders: failed to list orders", 400, err, w)
		return
	}

	if orders == nil {
		orders = []*models.SimOrder{}
	}

	if err := setResponse(orders, w); err != nil {
		setErrorResponse("handleListOrders: failed to set response", 500, err, w)
	}
}

func handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	provider, err := userProvider(r)
	if err != nil {
		setErrorResponse("handleSubmitOrder: failed to resolve user", 400, err, w)
		return
	}

	var req models.SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		setErrorResponse("handleSubmitOrder: failed to decode request", 400, err, w)
		return
	}

	order, err := provider.SubmitOrder(r.Context(), &req)
	if err != nil {
		setErrorResponse("handleSubmitOrder: failed to submit order", 400, err, w)
		return
	}

	if err := setResponse(order, w); err != nil {
		setErrorResponse("handleSubmitOrder: failed to set response", 500, err, w)
	}
}

type portfolioHistoryQuery struct {
	Period    string `schema:"period"`
	Timeframe string `schema:"timeframe"`
}

func handlePortfolioHistory(w http.ResponseWriter, r *http.Request) {
	provider, err := userProvider(r)
	if err != nil {
		setErrorResponse("handlePortfolioHistory: failed to resolve user", 400, err, w)
		return
	}

	query := portfolioHistoryQuery{Period: "1D", Timeframe: "15Min"}
	if err := decoder.Decode(&query, r.URL.Query()); err != nil {
		setErrorResponse("handlePortfolioHistory: failed to decode query", 400, err, w)
		return
	}

	points, err := provider.GetPortfolioHistory(r.Context(), query.Period, query.Timeframe)
	if err != nil {
		setErrorResponse("handlePortfolioHistory: failed to get history", 400, err, w)
		return
	}

	if points == nil {
		points = []*models.PortfolioPoint{}
	}

	if err := setResponse(points, w); err != nil {
		setErrorResponse("handlePortfolioHistory: failed to set response", 500, err, w)
	}
}

type barsQuery struct {
	Symbol    string `schema:"symbol"`
	Timeframe string `schema:"timeframe"`
	Limit     int    `schema:"limit"`
}

func handleBars(w http.ResponseWriter, r *http.Request) {
	provider, err := userProvider(r)
	if err != nil {
		setErrorResponse("handleBars: failed to resolve user", 400, err, w)
		return
	}

	query := barsQuery{Timeframe: "1Min", Limit: 100}
	if err := decoder.Decode(&query, r.URL.Query()); err != nil {
		setErrorResponse("handleBars: failed to decode query", 400, err, w)
		return
	}

	if query.Symbol == "" {
		setErrorResponse("handleBars: missing symbol", 400, fmt.Errorf("missing symbol"), w)
		return
	}

	bars, err := provider.GetBars(r.Context(), query.Symbol, query.Timeframe, query.Limit)
	if err != nil {
		setErrorResponse("handleBars: failed to fetch bars", 400, err, w)
		return
	}

	if err := setResponse(bars, w); err != nil {
		setErrorResponse("handleBars: failed to set response", 500, err, w)
	}
}

func handleSnapshot(w http.ResponseWriter, r *http.Request) {
	provider, err := userProvider(r)
	if err != nil {
		setErrorResponse("handleSnapshot: failed to resolve user", 400, err, w)
		return
	}

	vars := mux.Vars(r)
	orderID, err := uuid.Parse(vars["order_id"])
	if err != nil {
		setErrorResponse("handleSnapshot: failed to parse order id", 400, err, w)
		return
	}

	snapshot, err := provider.GetTradeSnapshot(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			setErrorResponse("handleSnapshot: snapshot not found", 404, err, w)
			return
		}

		setErrorResponse("handleSnapshot: failed to get snapshot", 500, err, w)
		return
	}

	if err := setResponse(snapshot, w); err != nil {
		setErrorResponse("handleSnapshot: failed to set response", 500, err, w)
	}
}

// SetupHandler mounts the simulation API on the given router. Each route is
// tagged for HTTP instrumentation.
func SetupHandler(router *mux.Router, e *services.Engine) {
	engine = e
	decoder.IgnoreUnknownKeys(true)

	handleFunc := func(pattern string, handlerFunc func(http.ResponseWriter, *http.Request)) *mux.Route {
		handler := otelhttp.WithRouteTag(pattern, http.HandlerFunc(handlerFunc))
		return router.Handle(pattern, handler)
	}

	handleFunc("/account", handleAccount).Methods(http.MethodGet)
	handleFunc("/account/reset", handleAccountReset).Methods(http.MethodPost)
	handleFunc("/account/portfolio/history", handlePortfolioHistory).Methods(http.MethodGet)
	handleFunc("/positions", handlePositions).Methods(http.MethodGet)
	handleFunc("/orders", handleOrders)
	handleFunc("/bars", handleBars).Methods(http.MethodGet)
	handleFunc("/snapshots/{order_id}", handleSnapshot).Methods(http.MethodGet)
}
