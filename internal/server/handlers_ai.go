package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

type chatRequest struct {
	Message string `json:"message"`
}

type dailyReportRequest struct {
	EntryID          *string  `json:"entry_id"`
	EntryText        string   `json:"entry_text"`
	SelectedEmotions []string `json:"selected_emotions"`
}

type weeklyReportRequest struct {
	Entries []WeeklyEntry `json:"entries"`
}

func (a *App) createChatMessage(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	payload := chatRequest{}
	if !mustJSON(c, &payload) {
		return
	}

	answer, err := a.ai.Chat(c.Request.Context(), user.ID, payload.Message)
	if err != nil {
		writeAIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer})
}

func (a *App) createDailyReport(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	payload := dailyReportRequest{}
	if !mustJSON(c, &payload) {
		return
	}

	report, err := a.ai.DailyAnalysis(c.Request.Context(), user.ID, payload.EntryID, payload.EntryText, payload.SelectedEmotions)
	if err != nil {
		writeAIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}

func (a *App) createWeeklyReport(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	payload := weeklyReportRequest{}
	if !mustJSON(c, &payload) {
		return
	}

	report, err := a.ai.WeeklyAnalysis(c.Request.Context(), user.ID, payload.Entries)
	if err != nil {
		writeAIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}

func (a *App) listReports(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	filter := ReportFilter{
		Type: strings.TrimSpace(c.Query("type")),
		Sort: strings.ToLower(strings.TrimSpace(c.Query("sort"))),
	}
	if raw := strings.TrimSpace(c.Query("year")); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			writeError(c, http.StatusBadRequest, "year must be a number")
			return
		}
		filter.Year = year
	}
	if raw := strings.TrimSpace(c.Query("month")); raw != "" {
		month, err := strconv.Atoi(raw)
		if err != nil {
			writeError(c, http.StatusBadRequest, "month must be a number")
			return
		}
		filter.Month = month
	}

	reports, err := a.ai.ListReports(c.Request.Context(), user.ID, filter)
	if err != nil {
		writeAIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

func (a *App) deleteReport(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	reportID := strings.TrimSpace(c.Param("report_id"))
	if reportID == "" {
		writeError(c, http.StatusBadRequest, "report_id is required")
		return
	}

	if err := a.ai.DeleteReport(c.Request.Context(), reportID, user.ID); err != nil {
		writeAIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// writeAIError maps pipeline errors to their HTTP form. Anything outside
// the known taxonomy becomes a generic 500 so internals never leak.
func writeAIError(c *gin.Context, err error) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		writeError(c, http.StatusBadRequest, validationErr.Message)
		return
	}
	var malformedErr *MalformedResponseError
	if errors.As(err, &malformedErr) {
		writeError(c, http.StatusBadGateway, malformedErr.Error())
		return
	}
	var aiErr *AIError
	if errors.As(err, &aiErr) {
		writeError(c, aiErr.Status, aiErr.Message)
		return
	}
	writeError(c, http.StatusInternalServerError, "Internal server error")
}
