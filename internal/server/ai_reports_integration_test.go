package server

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestRouterRequiresBearerToken(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := performRequest(t, router, http.MethodGet, "/api/v1/ai/reports", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if detail := responseDetail(t, rec); detail != "Bearer token required" {
		t.Fatalf("detail = %q", detail)
	}

	rec = performRequest(t, router, http.MethodGet, "/api/v1/ai/reports", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRouterRejectsUnknownUserWithoutAutoCreate(t *testing.T) {
	resetDatabase(t)
	router := newTestRouter(t, nil)

	token := signToken(t, testID(), nil)
	rec := performRequest(t, router, http.MethodGet, "/api/v1/ai/reports", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRouterAutoCreatesUserWhenEnabled(t *testing.T) {
	resetDatabase(t)

	cfg := baseTestConfig
	cfg.AuthAutoCreateUser = true
	router := newTestAppWithConfig(t, cfg, nil).Router()

	userID := testID()
	token := signTokenWithConfig(t, cfg, userID, map[string]any{"name": "Jamie", "email": "jamie@example.com"})
	rec := performRequest(t, router, http.MethodGet, "/api/v1/ai/reports", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", rec.Code, rec.Body.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var name string
	if err := testPool.QueryRow(ctx, `SELECT name FROM "User" WHERE id = $1`, userID).Scan(&name); err != nil {
		t.Fatalf("expected auto-created user: %v", err)
	}
	if name != "Jamie" {
		t.Fatalf("name = %q, want Jamie", name)
	}
}

func TestDailyReportEndpointPersistsAndLists(t *testing.T) {
	resetDatabase(t)

	mock := &MockAIClient{Response: dailyMockResponse}
	router := newTestRouter(t, mock)
	userID := seedUser(t, "")
	token := signToken(t, userID, nil)

	rec := performRequest(t, router, http.MethodPost, "/api/v1/ai/daily-report", token, map[string]any{
		"entry_text":        "I aced my exam and celebrated with friends",
		"selected_emotions": []string{"joy"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", rec.Code, rec.Body.String())
	}
	body := decodeJSONMap(t, rec)
	report, ok := body["report"].(map[string]any)
	if !ok {
		t.Fatalf("expected report object, got %v", body)
	}
	if _, ok := report["detectedEmotions"]; !ok {
		t.Fatalf("expected analysis content, got %v", report)
	}

	rec = performRequest(t, router, http.MethodGet, "/api/v1/ai/reports?type=daily", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d; body=%s", rec.Code, rec.Body.String())
	}
	listBody := decodeJSONMap(t, rec)
	reports, ok := listBody["reports"].([]any)
	if !ok || len(reports) != 1 {
		t.Fatalf("expected one listed report, got %v", listBody["reports"])
	}
	listed, _ := reports[0].(map[string]any)
	if listed["type"] != "daily" {
		t.Fatalf("listed type = %v, want daily", listed["type"])
	}
	if listed["reportEndDate"] != nil {
		t.Fatalf("daily report must have null reportEndDate, got %v", listed["reportEndDate"])
	}
}

func TestDailyReportEndpointIsIdempotentPerDay(t *testing.T) {
	resetDatabase(t)

	mock := &MockAIClient{Response: dailyMockResponse}
	router := newTestRouter(t, mock)
	userID := seedUser(t, "")
	token := signToken(t, userID, nil)

	payload := map[string]any{
		"entry_text":        "a quiet day with some reading",
		"selected_emotions": []string{"calm"},
	}
	for i := 0; i < 2; i++ {
		rec := performRequest(t, router, http.MethodPost, "/api/v1/ai/daily-report", token, payload)
		if rec.Code != http.StatusOK {
			t.Fatalf("call %d status = %d; body=%s", i+1, rec.Code, rec.Body.String())
		}
	}

	if len(mock.Prompts) != 1 {
		t.Fatalf("provider calls = %d, want 1", len(mock.Prompts))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var count int
	if err := testPool.QueryRow(ctx, `SELECT COUNT(*) FROM "AiReport" WHERE "userId" = $1`, userID).Scan(&count); err != nil {
		t.Fatalf("count reports: %v", err)
	}
	if count != 1 {
		t.Fatalf("stored reports = %d, want 1", count)
	}
}

func TestDailyReportEndpointCrisisDoesNotPersist(t *testing.T) {
	resetDatabase(t)

	mock := &MockAIClient{Response: dailyMockResponse}
	router := newTestRouter(t, mock)
	userID := seedUser(t, "")
	token := signToken(t, userID, nil)

	rec := performRequest(t, router, http.MethodPost, "/api/v1/ai/daily-report", token, map[string]any{
		"entry_text":        "I just want to end my life",
		"selected_emotions": []string{"sad"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body=%s", rec.Code, rec.Body.String())
	}
	body := decodeJSONMap(t, rec)
	report, _ := body["report"].(map[string]any)
	if report["crisis"] != true {
		t.Fatalf("expected crisis response, got %v", report)
	}
	if len(mock.Prompts) != 0 {
		t.Fatal("provider must not be called on the crisis path")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var count int
	if err := testPool.QueryRow(ctx, `SELECT COUNT(*) FROM "AiReport"`).Scan(&count); err != nil {
		t.Fatalf("count reports: %v", err)
	}
	if count != 0 {
		t.Fatalf("crisis must not be persisted, found %d rows", count)
	}
}

func TestWeeklyReportEndpointLimitedWeek(t *testing.T) {
	resetDatabase(t)

	mock := &MockAIClient{Response: limitedMockResponse}
	router := newTestRouter(t, mock)
	userID := seedUser(t, "")
	token := signToken(t, userID, nil)

	rec := performRequest(t, router, http.MethodPost, "/api/v1/ai/weekly-report", token, map[string]any{
		"entries": []map[string]any{
			{"date": "2026-08-24", "text": "an exhausting day at work"},
			{"date": "2026-08-30", "text": ""},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body=%s", rec.Code, rec.Body.String())
	}
	body := decodeJSONMap(t, rec)
	report, _ := body["report"].(map[string]any)
	if report["limitedData"] != true {
		t.Fatalf("expected limited report, got %v", report)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var reportType string
	err := testPool.QueryRow(ctx, `SELECT "reportType" FROM "AiReport" WHERE "userId" = $1`, userID).Scan(&reportType)
	if err != nil {
		t.Fatalf("load stored report: %v", err)
	}
	if reportType != "weekly_limited" {
		t.Fatalf("stored reportType = %q, want weekly_limited", reportType)
	}
}

func TestWeeklyReportEndpointValidationDetail(t *testing.T) {
	resetDatabase(t)

	router := newTestRouter(t, nil)
	userID := seedUser(t, "")
	token := signToken(t, userID, nil)

	rec := performRequest(t, router, http.MethodPost, "/api/v1/ai/weekly-report", token, map[string]any{
		"entries": []map[string]any{},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body=%s", rec.Code, rec.Body.String())
	}
	if detail := responseDetail(t, rec); detail != "No entries found. Please add some journal entries first." {
		t.Fatalf("detail = %q", detail)
	}
}

func TestDeleteReportEndpointScopedToOwner(t *testing.T) {
	resetDatabase(t)

	router := newTestRouter(t, nil)
	ownerID := seedUser(t, "")
	otherID := seedUser(t, "")
	reportID := seedReport(t, "", ownerID, ReportTypeDaily,
		time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC), nil,
		map[string]any{"insights": []string{"seed"}},
	)

	rec := performRequest(t, router, http.MethodDelete, "/api/v1/ai/reports/"+reportID, signToken(t, otherID, nil), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("foreign delete status = %d, want 400; body=%s", rec.Code, rec.Body.String())
	}

	rec = performRequest(t, router, http.MethodDelete, "/api/v1/ai/reports/"+reportID, signToken(t, ownerID, nil), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner delete status = %d; body=%s", rec.Code, rec.Body.String())
	}

	rec = performRequest(t, router, http.MethodDelete, "/api/v1/ai/reports/"+reportID, signToken(t, ownerID, nil), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("second delete status = %d, want 400", rec.Code)
	}
}

func TestChatEndpointKeepsHistoryPerUser(t *testing.T) {
	resetDatabase(t)

	mock := &MockAIClient{Response: "that sounds like a good plan"}
	router := newTestRouter(t, mock)
	userID := seedUser(t, "")
	token := signToken(t, userID, nil)

	for _, message := range []string{"I want to journal more often", "how do I build the habit?"} {
		rec := performRequest(t, router, http.MethodPost, "/api/v1/ai/chat", token, map[string]any{"message": message})
		if rec.Code != http.StatusOK {
			t.Fatalf("chat status = %d; body=%s", rec.Code, rec.Body.String())
		}
		body := decodeJSONMap(t, rec)
		if body["answer"] != "that sounds like a good plan" {
			t.Fatalf("unexpected answer: %v", body["answer"])
		}
	}

	if len(mock.Histories) != 2 {
		t.Fatalf("chat calls = %d, want 2", len(mock.Histories))
	}
	if len(mock.Histories[1]) != 2 {
		t.Fatalf("second call history = %d turns, want 2", len(mock.Histories[1]))
	}
}

func TestAIEndpointsMapProviderFailures(t *testing.T) {
	resetDatabase(t)

	mock := &MockAIClient{Err: &ProviderError{Kind: ProviderUnavailable, Detail: "upstream down"}}
	router := newTestRouter(t, mock)
	userID := seedUser(t, "")
	token := signToken(t, userID, nil)

	rec := performRequest(t, router, http.MethodPost, "/api/v1/ai/daily-report", token, map[string]any{
		"entry_text":        "an ordinary day with errands",
		"selected_emotions": []string{"calm"},
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503; body=%s", rec.Code, rec.Body.String())
	}
	if detail := responseDetail(t, rec); detail != "AI service temporarily unavailable." {
		t.Fatalf("detail = %q", detail)
	}
}
