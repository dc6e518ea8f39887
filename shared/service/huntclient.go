// shared/service/huntclient.go
package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/Ftotnem/astar-livesearch/shared/api"
	"github.com/Ftotnem/astar-livesearch/shared/models"
)

// HuntServiceClient is a client for the hunt service HTTP API.
type HuntServiceClient struct {
	apiClient *api.Client
}

// NewHuntClient creates a client for the hunt service at baseURL.
func NewHuntClient(baseURL string) *HuntServiceClient {
	return &HuntServiceClient{
		apiClient: api.NewClient(baseURL, api.NewDefaultHTTPClient()),
	}
}

// --- Request/Response DTOs mirroring hunt/api ---

type RegisterRequest struct {
	Identity   string          `json:"identity"`
	GroupID    string          `json:"groupId"`
	FullName   string          `json:"fullName"`
	Section    string          `json:"section,omitempty"`
	Members    []models.Member `json:"members,omitempty"`
	IdealRoute []string        `json:"idealRoute,omitempty"`
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
	ClaimedCost            int    `json:"claimedCost"`
}

type VerifyRouteResponse struct {
	Success      bool   `json:"success"`
	Complete     bool   `json:"complete"`
	NextNodeHint string `json:"nextNodeHint"`
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
	ResumePath string `json:"resumePath"`
}

// TeamsQuery mirrors the GET /teams query string. Zero values are omitted.
type TeamsQuery struct {
	Status   string
	Search   string
	Page     int
	PageSize int
}

type TeamsPage struct {
	Teams          []models.TeamStanding `json:"teams"`
	Total          int                   `json:"total"`
	Page           int                   `json:"page"`
	PageSize       int                   `json:"pageSize"`
	TotalPages     int                   `json:"totalPages"`
	TeamCount      int                   `json:"teamCount"`
	CompletedCount int                   `json:"completedCount"`
	RecentActivity []models.ActivityItem `json:"recentActivity"`
	GeneratedAt    time.Time             `json:"generatedAt"`
}

type UserInfo struct {
	GroupID         string                 `json:"groupId"`
	FullName        string                 `json:"fullName"`
	RouteColorIndex int                    `json:"routeColorIndex"`
	RouteColor      models.RouteColor      `json:"routeColor"`
	Completed       int                    `json:"completed"`
	Total           int                    `json:"total"`
	Remaining       int                    `json:"remaining"`
	Percent         float64                `json:"percent"`
	Complete        bool                   `json:"complete"`
	NextNode        string                 `json:"nextNode"`
	CurrentProgress []string               `json:"currentProgress"`
	RecentAttempts  []models.ProgressEntry `json:"recentAttempts"`
}

type ScanCode struct {
	Node   string `json:"node"`
	Number int    `json:"number"`
}

// --- Client Methods ---

// Register sends a POST request to /register.
func (c *HuntServiceClient) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var resp RegisterResponse
	if err := c.apiClient.Post(ctx, "/register", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to register group %s: %w", req.GroupID, err)
	}
	return &resp, nil
}

// VerifyNode sends a POST request to /verify-node.
func (c *HuntServiceClient) VerifyNode(ctx context.Context, req VerifyNodeRequest) error {
	if err := c.apiClient.Post(ctx, "/verify-node", req, nil); err != nil {
		return fmt.Errorf("failed to verify node %s: %w", req.ScannedNode, err)
	}
	return nil
}

// VerifyRoute sends a POST request to /verify-route.
func (c *HuntServiceClient) VerifyRoute(ctx context.Context, req VerifyRouteRequest) (*VerifyRouteResponse, error) {
	var resp VerifyRouteResponse
	if err := c.apiClient.Post(ctx, "/verify-route", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to verify route at node %s: %w", req.ScannedNode, err)
	}
	return &resp, nil
}

// RecoverIdentity sends a POST request to /recover-identity.
func (c *HuntServiceClient) RecoverIdentity(ctx context.Context, req RecoverIdentityRequest) (*RecoverIdentityResponse, error) {
	var resp RecoverIdentityResponse
	if err := c.apiClient.Post(ctx, "/recover-identity", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to recover identity for group %s: %w", req.GroupID, err)
	}
	return &resp, nil
}

// Teams sends a GET request to /teams.
func (c *HuntServiceClient) Teams(ctx context.Context, q TeamsQuery) (*TeamsPage, error) {
	values := url.Values{}
	if q.Status != "" {
		values.Set("status", q.Status)
	}
	if q.Search != "" {
		values.Set("search", q.Search)
	}
	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		values.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	path := "/teams"
	if encoded := values.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var page TeamsPage
	if err := c.apiClient.Get(ctx, path, &page); err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	return &page, nil
}

// UserInfo sends a POST request to /user-info.
func (c *HuntServiceClient) UserInfo(ctx context.Context, identity string) (*UserInfo, error) {
	var info UserInfo
	if err := c.apiClient.Post(ctx, "/user-info", map[string]string{"identity": identity}, &info); err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	return &info, nil
}

// DecodeScan sends a POST request to /decode-scan.
func (c *HuntServiceClient) DecodeScan(ctx context.Context, payload string) (*ScanCode, error) {
	var sc ScanCode
	if err := c.apiClient.Post(ctx, "/decode-scan", map[string]string{"data": payload}, &sc); err != nil {
		return nil, fmt.Errorf("failed to decode scan payload: %w", err)
	}
	return &sc, nil
}
