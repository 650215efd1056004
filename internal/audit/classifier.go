// Package audit classifies inbound HTTP requests into semantic audit records:
// an action label, a target entity type and id, and a log-type tag. The
// classification policy (path tables, keyword lists, page-dependency map) is an
// explicit injectable structure rather than literals scattered through the HTTP
// pipeline, so the whole policy is unit-testable in isolation.
//
// The supporting-call heuristic is inherently fuzzy: it matches against the
// client-controlled Referer header and must be treated as a best-effort
// classification hint, never a security boundary. It lives behind a single pure
// function (Policy.isSupportingCall) so its accuracy can be iterated
// independently of the rest of the pipeline.
package audit

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/hiring-pipeline/hiring-pipeline/internal/db/models"
)

// RequestInfo is the classifier's view of an inbound request. It carries plain
// data only so classification stays a pure computation.
type RequestInfo struct {
	Method  string
	Path    string
	Referer string
	// DashboardFetch is set when the request carries the dedicated header that
	// explicitly flags it as dashboard background traffic.
	DashboardFetch bool
}

// Classification is the classifier's verdict for one request.
type Classification struct {
	Action   string
	Entity   string
	EntityID *int64
	LogType  string
	// Persist is false for generic unnamed actions (a bare "View" on an
	// unrecognized GET path), which are classified but never written.
	Persist bool
}

// ActionOverride maps a sub-action path to a named label regardless of HTTP
// method, e.g. "/publish" under the requisitions resource.
type ActionOverride struct {
	// Resource is the path segment the override is scoped to ("" = any resource).
	Resource string
	// Contains is the path fragment that triggers the override.
	Contains string
	Label    string
}

// Policy holds the full classification policy. DefaultPolicy returns the
// shipped tables; tests construct reduced policies directly.
type Policy struct {
	// BasePath is stripped from request paths before segment extraction, so the
	// resource name is always the first remaining segment and the entity id the
	// second.
	BasePath string

	// SkipPrefixes lists path prefixes excluded from auditing entirely.
	SkipPrefixes []string

	// EntityNames normalizes resource path segments to display names. Segments
	// absent from the table classify as "Unknown".
	EntityNames map[string]string

	// MethodVerbs maps non-GET HTTP methods to action verbs.
	MethodVerbs map[string]string

	// Overrides are evaluated in order before the method-verb defaults.
	Overrides []ActionOverride

	// AuthResource and DatabaseResource are the resource segments that force the
	// Authentication and DatabaseManagement log types.
	AuthResource     string
	DatabaseResource string

	// SystemKeywords mark an action label as a system operation; SystemPathMarkers
	// do the same for path fragments.
	SystemKeywords    []string
	SystemPathMarkers []string

	// PageDependencies maps a page path fragment (taken from the Referer) to the
	// endpoint prefixes that page is known to fetch in the background for
	// cross-referencing or chart data.
	PageDependencies map[string][]string

	// DashboardHeader is the request header that explicitly flags dashboard
	// background traffic.
	DashboardHeader string
}

// genericView is the label assigned to unrecognized GET paths. Records carrying
// it are classified but never persisted.
const genericView = "View"

// DefaultPolicy returns the classification policy shipped with the application.
func DefaultPolicy() *Policy {
	return &Policy{
		BasePath: "/api/v1",
		SkipPrefixes: []string{
			"/api/v1/auditlogs",
			"/api/v1/auth/login",
			"/api/v1/auth/refresh",
			"/api/v1/auth/logout",
			"/api/v1/auth/revoke",
			"/api/v1/debug",
			"/api/v1/analytics",
			"/api/v1/uploads",
			"/swagger",
			"/health",
			"/metrics",
			"/favicon.ico",
		},
		EntityNames: map[string]string{
			"candidates":   "Candidate",
			"requisitions": "Requisition",
			"applications": "Application",
			"stagehistory": "Stage History",
			"users":        "User",
			"roles":        "Role",
			"permissions":  "Permission",
			"auth":         "Authentication",
			"database":     "Database",
		},
		MethodVerbs: map[string]string{
			"POST":   "Create",
			"PUT":    "Update",
			"PATCH":  "Update",
			"DELETE": "Delete",
		},
		Overrides: []ActionOverride{
			{Resource: "requisitions", Contains: "/publish", Label: "Publish Requisition"},
			{Resource: "requisitions", Contains: "/close", Label: "Close Requisition"},
			{Resource: "applications", Contains: "/stage", Label: "Move Application Stage"},
			{Resource: "users", Contains: "/password", Label: "Change Password"},
			{Resource: "users", Contains: "/deactivate", Label: "Deactivate User"},
			{Resource: "users", Contains: "/roles", Label: "Assign Role"},
			{Resource: "database", Contains: "/backup", Label: "Backup Database"},
			{Resource: "database", Contains: "/restore", Label: "Restore Database"},
		},
		AuthResource:      "auth",
		DatabaseResource:  "database",
		SystemKeywords:    []string{"System", "Background", "Scheduled", "Automatic"},
		SystemPathMarkers: []string{"/system/", "/background/"},
		PageDependencies: map[string][]string{
			"/applications": {"/api/v1/candidates", "/api/v1/requisitions", "/api/v1/stagehistory"},
			"/candidates":   {"/api/v1/applications", "/api/v1/requisitions"},
			"/requisitions": {"/api/v1/applications", "/api/v1/candidates"},
			"/dashboard":    {"/api/v1/candidates", "/api/v1/requisitions", "/api/v1/applications", "/api/v1/stagehistory"},
			"/stage-history": {
				"/api/v1/applications", "/api/v1/candidates",
			},
		},
		DashboardHeader: "X-Dashboard-Request",
	}
}

// ShouldSkip reports whether a request path is excluded from auditing.
func (p *Policy) ShouldSkip(path string) bool {
	for _, prefix := range p.SkipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Classify derives the audit classification for one request. The returned
// Persist flag is false when only a generic unnamed action could be assigned.
func (p *Policy) Classify(req RequestInfo) Classification {
	resource, entityID := p.splitPath(req.Path)

	entity := "Unknown"
	if resource != "" {
		if name, ok := p.EntityNames[resource]; ok {
			entity = name
		}
	}

	action, named := p.actionLabel(req.Method, req.Path, resource, entity)

	c := Classification{
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Persist:  named,
	}
	c.LogType = p.logType(req, resource, action)
	return c
}

// splitPath strips the base path and returns the resource segment and, when the
// following segment parses as an integer, the entity id. A missing or
// non-numeric id segment yields no id rather than an error.
func (p *Policy) splitPath(path string) (string, *int64) {
	trimmed := strings.TrimPrefix(path, p.BasePath)
	trimmed = strings.Trim(trimmed, "/")
	if trimmed == "" {
		return "", nil
	}
	segments := strings.Split(trimmed, "/")

	resource := strings.ToLower(segments[0])
	if len(segments) < 2 {
		return resource, nil
	}
	id, err := strconv.ParseInt(segments[1], 10, 64)
	if err != nil {
		return resource, nil
	}
	return resource, &id
}

// actionLabel resolves the action label and whether it is a specific, named
// action (generic views are classified but not persisted).
func (p *Policy) actionLabel(method, path, resource, entity string) (string, bool) {
	for _, o := range p.Overrides {
		if o.Resource != "" && o.Resource != resource {
			continue
		}
		if strings.Contains(path, o.Contains) {
			return o.Label, true
		}
	}

	if method == "GET" {
		if _, known := p.EntityNames[resource]; known {
			return "View " + entity, true
		}
		return genericView, false
	}

	verb, ok := p.MethodVerbs[method]
	if !ok {
		return genericView, false
	}
	return verb + " " + entity, true
}

// logType applies the mutually exclusive log-type tags in precedence order.
func (p *Policy) logType(req RequestInfo, resource, action string) string {
	switch resource {
	case p.AuthResource:
		return models.LogTypeAuthentication
	case p.DatabaseResource:
		return models.LogTypeDatabaseManagement
	}

	if req.Method == "GET" && p.isSupportingCall(req) {
		return models.LogTypeBackgroundFetch
	}

	for _, kw := range p.SystemKeywords {
		if strings.Contains(action, kw) {
			return models.LogTypeSystemOperation
		}
	}
	for _, marker := range p.SystemPathMarkers {
		if strings.Contains(req.Path, marker) {
			return models.LogTypeSystemOperation
		}
	}

	return models.LogTypeUserAction
}

// isSupportingCall decides whether a GET is background data loading for a page
// the user is viewing rather than primary navigation. A request with no referer
// is never a supporting call: it cannot be attributed to a parent page.
func (p *Policy) isSupportingCall(req RequestInfo) bool {
	// No referer means no parent page, even when the dashboard header is set:
	// direct API calls are primary navigation regardless of what they claim.
	if req.Referer == "" {
		return false
	}
	if req.DashboardFetch {
		return true
	}

	refPath := refererPath(req.Referer)
	if refPath == "" {
		return false
	}

	for page, endpoints := range p.PageDependencies {
		if !strings.Contains(refPath, page) {
			continue
		}
		for _, ep := range endpoints {
			if strings.HasPrefix(req.Path, ep) {
				return true
			}
		}
	}
	return false
}

// refererPath extracts the path portion of a referer value. Malformed referers
// are used as-is: string-contains matching still gives a usable hint.
func refererPath(referer string) string {
	u, err := url.Parse(referer)
	if err != nil {
		return referer
	}
	if u.Path != "" {
		return u.Path
	}
	return referer
}
