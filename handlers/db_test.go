package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"atlastel.gr/crm/models"
)

// testDB connects to the database named by TEST_DB_DSN, or skips.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Customer{}, &models.Lead{}, &models.SiteSurvey{},
		&models.RFP{}, &models.GeneratedFile{}, &models.SequenceCounter{}, &models.MarkupRule{}))
	return db
}

func TestUpsertRFPSingleRowPerLead(t *testing.T) {
	db := testDB(t)
	h := &RFPHandler{db: db}

	lead := models.Lead{Name: "Acme Ltd", LeadNo: "L-" + uuid.NewString()[:8]}
	require.NoError(t, db.Create(&lead).Error)
	survey := models.SiteSurvey{Title: "HQ site survey", LeadID: &lead.ID}
	require.NoError(t, db.Create(&survey).Error)

	first, err := h.upsertRFP(lead.ID, survey.ID, models.RequirementsSnapshot{GeneralNotes: "first"})
	require.NoError(t, err)
	require.NotEmpty(t, first.RFPNo)

	// Move the RFP forward, then regenerate against the same lead.
	require.NoError(t, db.Model(&models.RFP{}).Where("id = ?", first.ID).
		Update("status", models.RFPStatusSubmitted).Error)

	second, err := h.upsertRFP(lead.ID, survey.ID, models.RequirementsSnapshot{GeneralNotes: "second"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "regeneration must update the same row")
	assert.Equal(t, first.RFPNo, second.RFPNo)
	assert.Equal(t, models.RFPStatusInProgress, second.Status)
	assert.Equal(t, "second", second.Requirements.GeneralNotes)

	var count int64
	require.NoError(t, db.Model(&models.RFP{}).Where("lead_id = ?", lead.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestDeleteMarkupRuleNotFound(t *testing.T) {
	db := testDB(t)
	h := &MarkupRuleHandler{db: db}

	rule := models.MarkupRule{Scope: models.MarkupScopeBrand, Match: "Brand-" + uuid.NewString()[:8], Priority: 100, IsActive: true}
	require.NoError(t, db.Create(&rule).Error)

	w := httptest.NewRecorder()
	req := mux.SetURLVars(httptest.NewRequest(http.MethodDelete, "/markup-rules/x", nil),
		map[string]string{"id": rule.ID.String()})
	h.DeleteMarkupRule(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = mux.SetURLVars(httptest.NewRequest(http.MethodDelete, "/markup-rules/x", nil),
		map[string]string{"id": uuid.NewString()})
	h.DeleteMarkupRule(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
