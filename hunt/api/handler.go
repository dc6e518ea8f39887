// hunt/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Ftotnem/astar-livesearch/hunt/qr"
	"github.com/Ftotnem/astar-livesearch/hunt/service"
	"github.com/Ftotnem/astar-livesearch/shared/api"
	"github.com/Ftotnem/astar-livesearch/shared/models"
)

// Error kinds carried in the "error" field of every failure body.
const (
	KindBadRequest           = "BadRequest"
	KindMissingFields        = "MissingFields"
	KindInvalidRoute         = "InvalidRoute"
	KindDuplicateIdentity    = "DuplicateIdentity"
	KindDuplicateGroupID     = "DuplicateGroupId"
	KindUnknownIdentity      = "UnknownIdentity"
	KindUnknownGroupID       = "UnknownGroupId"
	KindIdentityInUse        = "IdentityInUse"
	KindRecoveryDenied       = "RecoveryDenied"
	KindWrongGroup           = "WrongGroup"
	KindWrongCost            = "WrongCost"
	KindWrongNode            = "WrongNode"
	KindRouteAlreadyComplete = "RouteAlreadyComplete"
	KindProgressConflict     = "ProgressConflict"
	KindCostUndefined        = "CostUndefined"
	KindStoreUnavailable     = "StoreUnavailable"
	KindInvalidScanPayload   = "InvalidScanPayload"
	KindInternal             = "Internal"
)

const defaultRequestTimeout = 5 * time.Second

// HuntAPIHandlers exposes the hunt services over HTTP. Codec, RecoveryLimiter
// and Health are optional.
type HuntAPIHandlers struct {
	Registration *service.RegistrationService
	Routes       *service.RouteService
	Identity     *service.IdentityService
	Leaderboard  *service.LeaderboardService

	Codec           *qr.Codec
	RecoveryLimiter *api.IPRateLimiter
	PublicBaseURL   string
	RequestTimeout  time.Duration
	Health          func(ctx context.Context) error

	logger *zap.Logger
}

func NewHuntAPIHandlers(
	reg *service.RegistrationService,
	routes *service.RouteService,
	identity *service.IdentityService,
	board *service.LeaderboardService,
	logger *zap.Logger,
) *HuntAPIHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HuntAPIHandlers{
		Registration:   reg,
		Routes:         routes,
		Identity:       identity,
		Leaderboard:    board,
		RequestTimeout: defaultRequestTimeout,
		logger:         logger,
	}
}

// RegisterRoutes mounts every endpoint on r.
func (h *HuntAPIHandlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/register", h.RegisterHandler).Methods("POST")
	r.HandleFunc("/verify-node", h.VerifyNodeHandler).Methods("POST")
	r.HandleFunc("/verify-route", h.VerifyRouteHandler).Methods("POST")

	var recoverHandler http.Handler = http.HandlerFunc(h.RecoverIdentityHandler)
	if h.RecoveryLimiter != nil {
		recoverHandler = h.RecoveryLimiter.Middleware(recoverHandler)
	}
	r.Handle("/recover-identity", recoverHandler).Methods("POST")

	r.HandleFunc("/teams", h.TeamsHandler).Methods("GET")
	r.HandleFunc("/user-info", h.UserInfoHandler).Methods("POST")
	r.HandleFunc("/decode-scan", h.DecodeScanHandler).Methods("POST")
	r.HandleFunc("/nodes/{node}/qr", h.NodeQRHandler).Methods("GET")
	r.HandleFunc("/healthz", h.HealthHandler).Methods("GET")
}

// --- Request/Response DTOs ---

type RegisterRequest struct {
	Identity   string          `json:"identity"`
	GroupID    string          `json:"groupId"`
	FullName   string          `json:"fullName"`
	Section    string          `json:"section"`
	Members    []models.Member `json:"members"`
	IdealRoute []string        `json:"idealRoute"`
}

type RegisterResponse struct {
	InsertedID      string            `json:"insertedId"`
	RouteColorIndex int               `json:"routeColorIndex"`
	RouteColor      models.RouteColor `json:"routeColor"`
}

type VerifyNodeRequest struct {
	Identity               string `json:"identity"`
	ClaimedRouteColorIndex int    `json:"claimedRouteColorIndex"`
	ScannedNode            string `json:"scannedNode"`
}

type VerifyRouteRequest struct {
	Identity               string `json:"identity"`
	ClaimedRouteColorIndex int    `json:"claimedRouteColorIndex"`
	ScannedNode            string `json:"scannedNode"`
	ClaimedCost            *int   `json:"claimedCost"`
}

type VerifyRouteResponse struct {
	Success      bool   `json:"success"`
	Complete     bool   `json:"complete,omitempty"`
	NextNodeHint string `json:"nextNodeHint,omitempty"`
	Completed    int    `json:"completed"`
	Total        int    `json:"total"`
}

type RecoverIdentityRequest struct {
	GroupID      string `json:"groupId"`
	NewIdentity  string `json:"newIdentity"`
	RecoveryCode string `json:"recoveryCode,omitempty"`
	ResumeNode   string `json:"resumeNode,omitempty"`
	ResumeColor  int    `json:"resumeColor,omitempty"`
}

type RecoverIdentityResponse struct {
	OK         bool   `json:"ok"`
	TeamID     string `json:"teamId"`
	ResumePath string `json:"resumePath,omitempty"`
}

type UserInfoRequest struct {
	Identity string `json:"identity"`
}

type DecodeScanRequest struct {
	Data string `json:"data"`
}

// --- Handler Methods ---

// RegisterHandler creates a team.
// POST /register
func (h *HuntAPIHandlers) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	res, err := h.Registration.Register(ctx, service.RegisterRequest{
		Identity:   req.Identity,
		GroupID:    req.GroupID,
		FullName:   req.FullName,
		Section:    req.Section,
		Members:    req.Members,
		IdealRoute: req.IdealRoute,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusCreated, RegisterResponse{
		InsertedID:      res.TeamID,
		RouteColorIndex: res.RouteColorIndex,
		RouteColor:      res.RouteColor,
	})
}

// VerifyNodeHandler checks a scanned code before a cost is entered.
// POST /verify-node
func (h *HuntAPIHandlers) VerifyNodeHandler(w http.ResponseWriter, r *http.Request) {
	var req VerifyNodeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Identity == "" || req.ScannedNode == "" || req.ClaimedRouteColorIndex == 0 {
		api.WriteError(w, http.StatusBadRequest, KindMissingFields, "identity, claimedRouteColorIndex and scannedNode are required")
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	err := h.Routes.CheckNode(ctx, service.NodeCheckRequest{
		Identity:               req.Identity,
		ClaimedRouteColorIndex: req.ClaimedRouteColorIndex,
		ScannedNode:            req.ScannedNode,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// VerifyRouteHandler submits a scan with its claimed cost.
// POST /verify-route
func (h *HuntAPIHandlers) VerifyRouteHandler(w http.ResponseWriter, r *http.Request) {
	var req VerifyRouteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Identity == "" || req.ScannedNode == "" || req.ClaimedRouteColorIndex == 0 || req.ClaimedCost == nil {
		api.WriteError(w, http.StatusBadRequest, KindMissingFields, "identity, claimedRouteColorIndex, scannedNode and claimedCost are required")
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	res, err := h.Routes.Verify(ctx, service.VerifyRequest{
		Identity:               req.Identity,
		ClaimedRouteColorIndex: req.ClaimedRouteColorIndex,
		ScannedNode:            req.ScannedNode,
		ClaimedCost:            *req.ClaimedCost,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if res.Outcome == service.OutcomeRouteComplete {
		api.WriteJSON(w, http.StatusAccepted, VerifyRouteResponse{
			Success:   true,
			Complete:  true,
			Completed: res.Completed,
			Total:     res.Total,
		})
		return
	}
	api.WriteJSON(w, http.StatusOK, VerifyRouteResponse{
		Success:      true,
		NextNodeHint: res.NextNodeHint,
		Completed:    res.Completed,
		Total:        res.Total,
	})
}

// RecoverIdentityHandler rebinds a team to a new device identity.
// POST /recover-identity
func (h *HuntAPIHandlers) RecoverIdentityHandler(w http.ResponseWriter, r *http.Request) {
	var req RecoverIdentityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	res, err := h.Identity.Recover(ctx, service.RecoverRequest{
		GroupID:      req.GroupID,
		NewIdentity:  req.NewIdentity,
		RecoveryCode: req.RecoveryCode,
		ResumeNode:   req.ResumeNode,
		ResumeColor:  req.ResumeColor,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, RecoverIdentityResponse{OK: true, TeamID: res.TeamID, ResumePath: res.ResumePath})
}

// TeamsHandler serves the ranked, filtered leaderboard.
// GET /teams?status=active&search=ab1&page=2&pageSize=25
func (h *HuntAPIHandlers) TeamsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := service.BoardQuery{
		Status: q.Get("status"),
		Search: q.Get("search"),
	}
	switch query.Status {
	case "", service.StatusAll, service.StatusActive, service.StatusCompleted:
	default:
		api.WriteError(w, http.StatusBadRequest, KindBadRequest, "status must be all, active or completed")
		return
	}
	var err error
	if query.Page, err = intParam(q.Get("page")); err != nil {
		api.WriteError(w, http.StatusBadRequest, KindBadRequest, "page must be a number")
		return
	}
	if query.PageSize, err = intParam(q.Get("pageSize")); err != nil {
		api.WriteError(w, http.StatusBadRequest, KindBadRequest, "pageSize must be a number")
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	page, err := h.Leaderboard.Board(ctx, query)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, page)
}

// UserInfoHandler returns the caller's own progress.
// POST /user-info
func (h *HuntAPIHandlers) UserInfoHandler(w http.ResponseWriter, r *http.Request) {
	var req UserInfoRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	summary, err := h.Leaderboard.Progress(ctx, req.Identity)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, summary)
}

// DecodeScanHandler turns a printed code's payload into a node and route number.
// POST /decode-scan
func (h *HuntAPIHandlers) DecodeScanHandler(w http.ResponseWriter, r *http.Request) {
	if h.Codec == nil {
		api.WriteError(w, http.StatusNotFound, KindInvalidScanPayload, "encrypted scan codes are not enabled")
		return
	}
	var req DecodeScanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sc, err := h.Codec.Decode(req.Data)
	if err != nil {
		h.logger.Debug("scan payload rejected", zap.Error(err))
		api.WriteError(w, http.StatusBadRequest, KindInvalidScanPayload, "this code could not be read, scan it again")
		return
	}
	api.WriteJSON(w, http.StatusOK, sc)
}

// NodeQRHandler renders the printable code for one node on one route color.
// GET /nodes/{node}/qr?color=N&size=320
func (h *HuntAPIHandlers) NodeQRHandler(w http.ResponseWriter, r *http.Request) {
	node := mux.Vars(r)["node"]
	color, err := strconv.Atoi(r.URL.Query().Get("color"))
	if err != nil || color < 1 || color > models.RouteColorCount {
		api.WriteError(w, http.StatusBadRequest, KindBadRequest, "color must be between 1 and 4")
		return
	}
	size, err := intParam(r.URL.Query().Get("size"))
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, KindBadRequest, "size must be a number")
		return
	}

	target, err := qr.LinkFor(h.Codec, h.PublicBaseURL, qr.ScanCode{Node: node, Number: color})
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, KindBadRequest, err.Error())
		return
	}

	png, err := qr.Render(target, size)
	if err != nil {
		h.logger.Error("qr render failed", zap.String("node", node), zap.Error(err))
		api.WriteInternalServerError(w, "failed to render code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// HealthHandler reports whether the backing store answers.
// GET /healthz
func (h *HuntAPIHandlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		ctx, cancel := h.requestContext(r)
		defer cancel()
		if err := h.Health(ctx); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			api.WriteError(w, http.StatusServiceUnavailable, KindStoreUnavailable, "store unreachable")
			return
		}
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- helpers ---

func (h *HuntAPIHandlers) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	timeout := h.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return context.WithTimeout(r.Context(), timeout)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		api.WriteError(w, http.StatusBadRequest, KindBadRequest, "invalid request body")
		return false
	}
	return true
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// writeServiceError maps service errors to status codes and error kinds.
func (h *HuntAPIHandlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		attemptErr *service.AttemptError
		groupErr   *service.WrongGroupError
	)
	switch {
	case errors.As(err, &attemptErr):
		fields := map[string]interface{}{"recorded": true}
		kind := KindWrongCost
		msg := "that cost is not correct, recompute it and try again"
		if errors.Is(err, service.ErrWrongNode) {
			kind = KindWrongNode
			msg = "this is not the next node on your route"
			fields["expectedNode"] = attemptErr.ExpectedNode
		}
		api.WriteErrorFields(w, http.StatusBadRequest, kind, msg, fields)

	case errors.As(err, &groupErr):
		api.WriteErrorFields(w, http.StatusForbidden, KindWrongGroup, "this code belongs to another route color", map[string]interface{}{
			"expectedRouteColorIndex":  groupErr.Expected,
			"submittedRouteColorIndex": groupErr.Submitted,
		})

	case errors.Is(err, service.ErrUnknownIdentity):
		api.WriteErrorFields(w, http.StatusNotFound, KindUnknownIdentity, "this device is not registered, recover your team to continue",
			map[string]interface{}{"needsRecovery": true, "recoveryCodeRequired": h.Identity.RecoveryRequired()})
	case errors.Is(err, service.ErrRouteAlreadyComplete):
		api.WriteErrorFields(w, http.StatusConflict, KindRouteAlreadyComplete, "your route is already complete",
			map[string]interface{}{"recorded": true})
	case errors.Is(err, service.ErrProgressConflict):
		api.WriteErrorFields(w, http.StatusConflict, KindProgressConflict, "another scan advanced your team first, refresh and continue",
			map[string]interface{}{"recorded": true})

	case errors.Is(err, service.ErrMissingFields):
		api.WriteError(w, http.StatusBadRequest, KindMissingFields, err.Error())
	case errors.Is(err, service.ErrInvalidRoute):
		api.WriteError(w, http.StatusBadRequest, KindInvalidRoute, err.Error())
	case errors.Is(err, service.ErrDuplicateIdentity):
		api.WriteError(w, http.StatusBadRequest, KindDuplicateIdentity, "this device is already registered to a team")
	case errors.Is(err, service.ErrDuplicateGroupID):
		api.WriteError(w, http.StatusBadRequest, KindDuplicateGroupID, "this group id is already registered")

	case errors.Is(err, service.ErrUnknownGroupID):
		api.WriteError(w, http.StatusNotFound, KindUnknownGroupID, "no team is registered under that group id")
	case errors.Is(err, service.ErrIdentityInUse):
		api.WriteError(w, http.StatusConflict, KindIdentityInUse, "this device is registered to another team")
	case errors.Is(err, service.ErrRecoveryDenied):
		api.WriteError(w, http.StatusForbidden, KindRecoveryDenied, "recovery code rejected")

	case errors.Is(err, service.ErrStoreUnavailable):
		h.logger.Error("store unavailable", zap.String("path", r.URL.Path), zap.Error(err))
		api.WriteError(w, http.StatusServiceUnavailable, KindStoreUnavailable, "the hunt is temporarily unavailable, try again")
	case errors.Is(err, service.ErrCostUndefined):
		h.logger.Error("cost rule misconfigured", zap.Error(err))
		api.WriteError(w, http.StatusInternalServerError, KindCostUndefined, "scoring is misconfigured, tell a facilitator")

	default:
		h.logger.Error("unhandled service error", zap.String("path", r.URL.Path), zap.Error(err))
		api.WriteError(w, http.StatusInternalServerError, KindInternal, "internal error")
	}
}
