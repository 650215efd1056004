package pipeline

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/lib/pq"

	"github.com/hiring-pipeline/hiring-pipeline/internal/config"
	"github.com/hiring-pipeline/hiring-pipeline/internal/db/models"
	"github.com/hiring-pipeline/hiring-pipeline/internal/middleware"
)

// applicationSQLCols are the columns returned by application SELECT queries.
var applicationSQLCols = []string{
	"id", "candidate_id", "requisition_id", "current_stage", "status", "applied_at", "updated_at",
}

func sampleApplicationRow() *sqlmock.Rows {
	return sqlmock.NewRows(applicationSQLCols).
		AddRow(int64(3), int64(42), int64(7), models.StageApplied, models.ApplicationActive,
			time.Now(), time.Now())
}

func emptyApplicationRows() *sqlmock.Rows {
	return sqlmock.NewRows(applicationSQLCols)
}

// newApplicationRouter creates a gin router with all ApplicationHandlers routes
// registered, injecting an authenticated caller for the stage-move route.
func newApplicationRouter(t *testing.T) (sqlmock.Sqlmock, *gin.Engine) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := NewApplicationHandlers(&config.Config{}, db)

	r := gin.New()
	r.GET("/applications", h.ListApplicationsHandler())
	r.GET("/applications/:id", h.GetApplicationHandler())
	r.POST("/applications", h.CreateApplicationHandler())
	r.POST("/applications/:id/stage", func(c *gin.Context) {
		c.Set(middleware.ContextUserID, int64(5))
	}, h.MoveStageHandler())
	r.GET("/applications/:id/stagehistory", h.ListStageHistoryHandler())

	return mock, r
}

// ---------------------------------------------------------------------------
// Listing and creation
// ---------------------------------------------------------------------------

func TestListApplicationsHandler_RequisitionFilter(t *testing.T) {
	mock, r := newApplicationRouter(t)

	mock.ExpectQuery("SELECT id, candidate_id.*FROM applications").
		WithArgs(int64(7)).
		WillReturnRows(sampleApplicationRow())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/applications?requisitionId=7", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
}

func TestCreateApplicationHandler_Success(t *testing.T) {
	mock, r := newApplicationRouter(t)

	mock.ExpectQuery("SELECT id, first_name.*FROM candidates.*WHERE id").
		WithArgs(int64(42)).
		WillReturnRows(sampleCandidateRow())
	mock.ExpectQuery("SELECT id, title.*FROM requisitions.*WHERE id").
		WithArgs(int64(7)).
		WillReturnRows(sampleRequisitionRow(models.RequisitionPublished))
	mock.ExpectQuery("INSERT INTO applications.*RETURNING id").
		WithArgs(int64(42), int64(7), models.StageApplied, models.ApplicationActive,
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/applications",
		jsonBody(gin.H{"candidateId": 42, "requisitionId": 7})))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", w.Code, w.Body.String())
	}
}

func TestCreateApplicationHandler_RequisitionNotOpen(t *testing.T) {
	mock, r := newApplicationRouter(t)

	mock.ExpectQuery("SELECT id, first_name.*FROM candidates.*WHERE id").
		WillReturnRows(sampleCandidateRow())
	mock.ExpectQuery("SELECT id, title.*FROM requisitions.*WHERE id").
		WillReturnRows(sampleRequisitionRow(models.RequisitionDraft))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/applications",
		jsonBody(gin.H{"candidateId": 42, "requisitionId": 7})))

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestCreateApplicationHandler_AlreadyApplied(t *testing.T) {
	mock, r := newApplicationRouter(t)

	mock.ExpectQuery("SELECT id, first_name.*FROM candidates.*WHERE id").
		WillReturnRows(sampleCandidateRow())
	mock.ExpectQuery("SELECT id, title.*FROM requisitions.*WHERE id").
		WillReturnRows(sampleRequisitionRow(models.RequisitionPublished))
	mock.ExpectQuery("INSERT INTO applications.*RETURNING id").
		WillReturnError(&pq.Error{Code: "23505"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/applications",
		jsonBody(gin.H{"candidateId": 42, "requisitionId": 7})))

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Stage moves
// ---------------------------------------------------------------------------

func TestMoveStageHandler_Success(t *testing.T) {
	mock, r := newApplicationRouter(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT current_stage FROM applications.*FOR UPDATE").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"current_stage"}).AddRow(models.StageApplied))
	mock.ExpectExec("UPDATE applications.*SET current_stage").
		WithArgs(int64(3), models.StageScreening, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO stage_history").
		WithArgs(int64(3), models.StageApplied, models.StageScreening, int64(5), nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/applications/3/stage",
		jsonBody(gin.H{"toStage": "screening"})))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}

	resp := getJSON(w)
	if resp["fromStage"] != models.StageApplied || resp["toStage"] != models.StageScreening {
		t.Errorf("transition = %v -> %v, want applied -> screening", resp["fromStage"], resp["toStage"])
	}
}

func TestMoveStageHandler_UnknownStage(t *testing.T) {
	_, r := newApplicationRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/applications/3/stage",
		jsonBody(gin.H{"toStage": "limbo"})))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestMoveStageHandler_ApplicationNotFound(t *testing.T) {
	mock, r := newApplicationRouter(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT current_stage FROM applications.*FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"current_stage"}))
	mock.ExpectRollback()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/applications/99/stage",
		jsonBody(gin.H{"toStage": "screening"})))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Stage history
// ---------------------------------------------------------------------------

func TestListStageHistoryHandler_Success(t *testing.T) {
	mock, r := newApplicationRouter(t)

	mock.ExpectQuery("SELECT id, candidate_id.*FROM applications.*WHERE id").
		WillReturnRows(sampleApplicationRow())
	mock.ExpectQuery("SELECT id, application_id.*FROM stage_history").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "application_id", "from_stage", "to_stage", "moved_by", "note", "moved_at",
		}).AddRow(int64(1), int64(3), nil, models.StageApplied, nil, nil, time.Now()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/applications/3/stagehistory", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}

	resp := getJSON(w)
	history, _ := resp["stageHistory"].([]interface{})
	if len(history) != 1 {
		t.Errorf("stageHistory = %v, want 1 entry", history)
	}
}

func TestListStageHistoryHandler_ApplicationNotFound(t *testing.T) {
	mock, r := newApplicationRouter(t)

	mock.ExpectQuery("SELECT id, candidate_id.*FROM applications.*WHERE id").
		WillReturnRows(emptyApplicationRows())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/applications/99/stagehistory", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
