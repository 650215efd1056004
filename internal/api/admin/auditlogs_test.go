package admin

import (
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/hiring-pipeline/hiring-pipeline/internal/middleware"
)

// auditSQLCols are the columns returned by audit log SELECT queries.
var auditSQLCols = []string{
	"id", "user_id", "username", "user_role", "ip_address", "user_agent",
	"action", "entity", "entity_id", "changes", "details", "log_type", "created_at",
}

const auditRowID = "3f0a2b7c-9d4e-4f61-8a35-b2c1d0e9f817"

func sampleAuditRow() *sqlmock.Rows {
	return sqlmock.NewRows(auditSQLCols).
		AddRow(auditRowID, int64(1), "alice", "Recruiter", "203.0.113.7", "curl/8",
			"Create Candidate", "Candidate", int64(42), []byte(`{"name":"Jo"}`), nil,
			"UserAction", time.Now())
}

func emptyAuditRows() *sqlmock.Rows {
	return sqlmock.NewRows(auditSQLCols)
}

func countRow(n int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"count"}).AddRow(n)
}

// newAuditRouter creates a gin router with all AuditLogHandlers routes registered.
func newAuditRouter(t *testing.T) (sqlmock.Sqlmock, *gin.Engine) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := NewAuditLogHandlers(testConfig(), db)

	r := gin.New()
	r.GET("/auditlogs", h.ListAuditLogsHandler())
	r.GET("/auditlogs/entity/:entity/:entityId", h.ListEntityAuditLogsHandler())
	r.GET("/auditlogs/user/:userId", h.ListUserAuditLogsHandler())
	r.GET("/auditlogs/export", h.ExportAuditLogsHandler())
	r.DELETE("/auditlogs/clear", h.ClearAuditLogsHandler())
	r.GET("/auditlogs/:id", h.GetAuditLogHandler())
	r.DELETE("/auditlogs/:id", h.DeleteAuditLogHandler())
	r.POST("/auditlogs/log", h.SelfReportHandler())

	return mock, r
}

// ---------------------------------------------------------------------------
// ListAuditLogsHandler
// ---------------------------------------------------------------------------

func TestListAuditLogsHandler_Success(t *testing.T) {
	mock, r := newAuditRouter(t)

	mock.ExpectQuery("SELECT COUNT").WillReturnRows(countRow(1))
	mock.ExpectQuery("SELECT id, user_id.*FROM audit_logs").WillReturnRows(sampleAuditRow())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/auditlogs", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}

	resp := getJSON(w)
	if resp["totalCount"] != float64(1) {
		t.Errorf("totalCount = %v, want 1", resp["totalCount"])
	}
	if resp["take"] != float64(100) {
		t.Errorf("take = %v, want default 100", resp["take"])
	}

	logs, _ := resp["auditLogs"].([]interface{})
	if len(logs) != 1 {
		t.Fatalf("auditLogs = %v, want 1 entry", logs)
	}
	first, _ := logs[0].(map[string]interface{})
	if first["action"] != "Create Candidate" {
		t.Errorf("auditLogs[0].action = %v, want Create Candidate", first["action"])
	}
}

func TestListAuditLogsHandler_Filters(t *testing.T) {
	mock, r := newAuditRouter(t)

	// userId, entity, and logType filters land in both the count and the page
	// query with the same positional values.
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(int64(1), "Candidate", "UserAction").
		WillReturnRows(countRow(0))
	mock.ExpectQuery("SELECT id, user_id.*FROM audit_logs").
		WithArgs(int64(1), "Candidate", "UserAction", 25, 5).
		WillReturnRows(emptyAuditRows())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET",
		"/auditlogs?userId=1&entity=Candidate&logType=UserAction&skip=5&take=25", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	if resp := getJSON(w); resp["skip"] != float64(5) || resp["take"] != float64(25) {
		t.Errorf("paging echo = %v/%v, want 5/25", resp["skip"], resp["take"])
	}
}

func TestListAuditLogsHandler_InvalidFilter(t *testing.T) {
	_, r := newAuditRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/auditlogs?userId=abc", nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestListEntityAuditLogsHandler(t *testing.T) {
	mock, r := newAuditRouter(t)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("Candidate", int64(42)).
		WillReturnRows(countRow(1))
	mock.ExpectQuery("SELECT id, user_id.*FROM audit_logs").
		WillReturnRows(sampleAuditRow())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/auditlogs/entity/Candidate/42", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
}

func TestListUserAuditLogsHandler(t *testing.T) {
	mock, r := newAuditRouter(t)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(int64(1)).
		WillReturnRows(countRow(1))
	mock.ExpectQuery("SELECT id, user_id.*FROM audit_logs").
		WillReturnRows(sampleAuditRow())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/auditlogs/user/1", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
}

// ---------------------------------------------------------------------------
// ExportAuditLogsHandler
// ---------------------------------------------------------------------------

func TestExportAuditLogsHandler(t *testing.T) {
	mock, r := newAuditRouter(t)

	mock.ExpectQuery("SELECT id, user_id.*FROM audit_logs").
		WillReturnRows(sampleAuditRow())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/auditlogs/export", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q, want text/csv", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("Content-Disposition = %q, want attachment", cd)
	}

	records, err := csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatalf("csv parse: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("csv rows = %d, want header + 1", len(records))
	}
	if records[1][0] != auditRowID {
		t.Errorf("csv id = %q, want %q", records[1][0], auditRowID)
	}
}

func TestExportAuditLogsHandler_ConfiguredCapReachesQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := testConfig()
	cfg.Audit.ExportTakeLimit = 250
	h := NewAuditLogHandlers(cfg, db)

	r := gin.New()
	r.GET("/auditlogs/export", h.ExportAuditLogsHandler())

	mock.ExpectQuery(`SELECT id, user_id.*FROM audit_logs.*LIMIT \$1`).
		WithArgs(250).
		WillReturnRows(sampleAuditRow())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/auditlogs/export", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Get / Delete / Clear
// ---------------------------------------------------------------------------

func TestGetAuditLogHandler_NotFound(t *testing.T) {
	mock, r := newAuditRouter(t)

	mock.ExpectQuery("SELECT id, user_id.*FROM audit_logs WHERE id").
		WillReturnRows(emptyAuditRows())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/auditlogs/"+auditRowID, nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestDeleteAuditLogHandler_Success(t *testing.T) {
	mock, r := newAuditRouter(t)

	mock.ExpectExec("DELETE FROM audit_logs WHERE id").
		WithArgs(auditRowID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("DELETE", "/auditlogs/"+auditRowID, nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestDeleteAuditLogHandler_NotFound(t *testing.T) {
	mock, r := newAuditRouter(t)

	mock.ExpectExec("DELETE FROM audit_logs WHERE id").
		WillReturnResult(sqlmock.NewResult(0, 0))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("DELETE", "/auditlogs/"+auditRowID, nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestClearAuditLogsHandler(t *testing.T) {
	mock, r := newAuditRouter(t)

	mock.ExpectExec("DELETE FROM audit_logs").
		WillReturnResult(sqlmock.NewResult(0, 17))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("DELETE", "/auditlogs/clear", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	if resp := getJSON(w); resp["deleted"] != float64(17) {
		t.Errorf("deleted = %v, want 17", resp["deleted"])
	}
}

// ---------------------------------------------------------------------------
// SelfReportHandler
// ---------------------------------------------------------------------------

func TestSelfReportHandler_Anonymous(t *testing.T) {
	mock, r := newAuditRouter(t)

	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/auditlogs/log",
		jsonBody(gin.H{"action": "Open Dashboard", "entity": "Dashboard"})))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", w.Code, w.Body.String())
	}

	resp := getJSON(w)
	log, _ := resp["auditLog"].(map[string]interface{})
	if log["username"] != "Anonymous" {
		t.Errorf("username = %v, want Anonymous", log["username"])
	}
	if log["logType"] != "UserAction" {
		t.Errorf("logType = %v, want UserAction", log["logType"])
	}
}

func TestSelfReportHandler_AuthenticatedSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := NewAuditLogHandlers(testConfig(), db)

	r := gin.New()
	r.POST("/auditlogs/log", func(c *gin.Context) {
		c.Set(middleware.ContextUserID, int64(1))
		c.Set(middleware.ContextUsername, "alice")
		c.Set(middleware.ContextRoles, []string{"Recruiter"})
	}, h.SelfReportHandler())

	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/auditlogs/log",
		jsonBody(gin.H{"action": "Open Report", "entity": "Report", "entityId": 7})))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", w.Code, w.Body.String())
	}

	resp := getJSON(w)
	log, _ := resp["auditLog"].(map[string]interface{})
	if log["username"] != "alice" || log["userRole"] != "Recruiter" {
		t.Errorf("actor snapshot = %v/%v, want alice/Recruiter", log["username"], log["userRole"])
	}
}

func TestSelfReportHandler_Validation(t *testing.T) {
	_, r := newAuditRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/auditlogs/log",
		jsonBody(gin.H{"entity": "Report"})))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
