package server

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"emojournal/backend/internal/logger"
)

// AIService orchestrates the report and chat pipelines: validation, safety
// filtering, prompt building, provider calls, normalization, persistence.
type AIService struct {
	ai      AIClient
	reports ReportStore
	memory  ChatMemoryStore
	crisis  CrisisDetector
	log     *logger.Logger
	now     func() time.Time
}

func NewAIService(ai AIClient, reports ReportStore, memory ChatMemoryStore, crisis CrisisDetector, log *logger.Logger) *AIService {
	return &AIService{
		ai:      ai,
		reports: reports,
		memory:  memory,
		crisis:  crisis,
		log:     log,
		now:     time.Now,
	}
}

func crisisContent() map[string]any {
	return map[string]any{
		"crisis":  true,
		"message": crisisResponse,
	}
}

func isCrisisContent(content map[string]any) bool {
	flagged, ok := content["crisis"].(bool)
	return ok && flagged
}

// Chat answers a free-form user message with the stored conversation as
// context. Crisis messages short-circuit with the fixed response and are
// never sent to the provider or recorded in history.
func (s *AIService) Chat(ctx context.Context, userID, message string) (string, error) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return "", newValidationError("Message cannot be empty. Please write something.")
	}
	if len([]rune(trimmed)) < 2 {
		return "", newValidationError("Message is too short. Please write at least a few words.")
	}
	if len([]rune(message)) > maxMessageLength {
		return "", newValidationError("Message is too long. Maximum length is %d characters.", maxMessageLength)
	}

	if s.crisis.Flags(message) {
		s.log.Warn("crisis language detected in chat", "userId", userID)
		return crisisResponse, nil
	}
	if isGibberish(message) {
		return "", newValidationError("It looks like your message contains unreadable characters. Please write meaningful text in English.")
	}

	history, err := s.memory.History(ctx, userID)
	if err != nil {
		s.log.Warn("chat history load failed, continuing without context", "userId", userID, "error", err)
		history = nil
	}

	answer, err := s.ai.Chat(ctx, history, buildChatPrompt(trimmed))
	if err != nil {
		return "", s.failProvider(err, userID, trimmed, "Failed to generate chat response. Please try again.")
	}
	if strings.TrimSpace(answer) == "" {
		err := &ProviderError{Kind: ProviderOther, Detail: "empty chat response"}
		return "", s.failProvider(err, userID, trimmed, "Failed to generate chat response. Please try again.")
	}

	if err := s.memory.Append(ctx, userID,
		ChatTurn{Role: chatRoleUser, Text: trimmed},
		ChatTurn{Role: chatRoleModel, Text: answer},
	); err != nil {
		s.log.Warn("chat history append failed", "userId", userID, "error", err)
	}
	return answer, nil
}

// DailyAnalysis generates (or returns the already-stored) report for
// today's entry.
func (s *AIService) DailyAnalysis(ctx context.Context, userID string, entryID *string, entryText string, selectedEmotions []string) (map[string]any, error) {
	emotions := compactStrings(selectedEmotions)
	if len(emotions) == 0 {
		return nil, newValidationError("Please select at least one emotion for analysis.")
	}

	trimmed := strings.TrimSpace(entryText)
	if trimmed == "" {
		return nil, newValidationError("Entry text is required.")
	}
	if len([]rune(trimmed)) < minEntryLength {
		return nil, newValidationError("Entry text is too short. Please write at least %d characters to get meaningful analysis.", minEntryLength)
	}
	if len([]rune(entryText)) > maxEntryLength {
		return nil, newValidationError("Entry text is too long. Maximum length is %d characters.", maxEntryLength)
	}

	if s.crisis.Flags(entryText) {
		s.log.Warn("crisis language detected in daily entry", "userId", userID)
		return crisisContent(), nil
	}
	if isGibberish(entryText) {
		return nil, newValidationError("It looks like your entry contains unreadable characters. Please write meaningful text in English.")
	}

	today := startOfUTCDay(s.now())
	existing, err := s.reports.FindDailyByDate(ctx, userID, today)
	if err != nil {
		s.log.Error("daily report lookup failed", "userId", userID, "error", err)
		return nil, fmt.Errorf("daily report lookup: %w", err)
	}
	if existing != nil {
		s.log.Info("daily report already exists, returning stored report", "userId", userID, "reportId", existing.ID)
		return existing.Content, nil
	}

	raw, err := s.ai.Generate(ctx, buildDailyPrompt(trimmed, emotions))
	if err != nil {
		return nil, s.failProvider(err, userID, trimmed, "Failed to generate daily analysis. Please try again.")
	}

	content, err := normalizeAIJSON(raw)
	if err != nil {
		s.log.Error("daily analysis returned malformed JSON", "userId", userID, "response", truncateForLog(raw, 300))
		return nil, err
	}
	if isCrisisContent(content) {
		return content, nil
	}

	report := &Report{
		UserID:     userID,
		EntryID:    entryID,
		Type:       ReportTypeDaily,
		ReportDate: today,
		Content:    content,
	}
	if err := s.reports.Insert(ctx, report); err != nil {
		s.log.Error("daily report insert failed", "userId", userID, "error", err)
		return nil, fmt.Errorf("daily report insert: %w", err)
	}
	return content, nil
}

// WeeklyAnalysis generates a weekly report over up to seven days of
// entries. Weeks with fewer than three written entries get the limited
// variant.
func (s *AIService) WeeklyAnalysis(ctx context.Context, userID string, entries []WeeklyEntry) (map[string]any, error) {
	if len(entries) == 0 {
		return nil, newValidationError("No entries found. Please add some journal entries first.")
	}
	if len(entries) > maxWeeklyEntries {
		return nil, newValidationError("Too many entries. Maximum is %d days.", maxWeeklyEntries)
	}

	for i, entry := range entries {
		if len([]rune(entry.Text)) > maxEntryLength {
			return nil, newValidationError("Entry for day %d is too long. Maximum length is %d characters.", i+1, maxEntryLength)
		}
		if s.crisis.Flags(entry.Text) {
			s.log.Warn("crisis language detected in weekly entries", "userId", userID, "day", i+1)
			return crisisContent(), nil
		}
		if strings.TrimSpace(entry.Text) != "" && isGibberish(entry.Text) {
			return nil, newValidationError("Entry for day %d contains unreadable text. Please write meaningful journal entries.", i+1)
		}
	}

	start, err := parseReportDate(entries[0].Date)
	if err != nil {
		return nil, newValidationError("Entry for day 1 has an invalid date. Use YYYY-MM-DD.")
	}
	end, err := parseReportDate(entries[len(entries)-1].Date)
	if err != nil {
		return nil, newValidationError("Entry for day %d has an invalid date. Use YYYY-MM-DD.", len(entries))
	}

	existing, err := s.reports.FindWeeklyByRange(ctx, userID, start, end)
	if err != nil {
		s.log.Error("weekly report lookup failed", "userId", userID, "error", err)
		return nil, fmt.Errorf("weekly report lookup: %w", err)
	}
	if existing != nil {
		s.log.Info("weekly report already exists, returning stored report", "userId", userID, "reportId", existing.ID)
		return existing.Content, nil
	}

	validEntries := make([]WeeklyEntry, 0, len(entries))
	for _, entry := range entries {
		if strings.TrimSpace(entry.Text) != "" {
			validEntries = append(validEntries, entry)
		}
	}

	limited := len(validEntries) < minWeeklyEntries
	var prompt string
	if limited {
		prompt = buildLimitedWeeklyPrompt(validEntries)
	} else {
		prompt = buildWeeklyPrompt(validEntries)
	}

	raw, err := s.ai.Generate(ctx, prompt)
	if err != nil {
		return nil, s.failProvider(err, userID, entries[0].Text, "Failed to generate weekly analysis. Please try again.")
	}

	content, err := normalizeAIJSON(raw)
	if err != nil {
		s.log.Error("weekly analysis returned malformed JSON", "userId", userID, "response", truncateForLog(raw, 300))
		return nil, err
	}
	if isCrisisContent(content) {
		return content, nil
	}

	reportType := ReportTypeWeekly
	if limited {
		reportType = ReportTypeWeeklyLimited
		content["limitedData"] = true
		if _, ok := content["note"]; !ok {
			content["note"] = fmt.Sprintf("This analysis is based on only %s, so it may not reflect your full week.", entryCountPhrase(len(validEntries)))
		}
	}

	report := &Report{
		UserID:        userID,
		Type:          reportType,
		ReportDate:    start,
		ReportEndDate: &end,
		Content:       content,
	}
	if err := s.reports.Insert(ctx, report); err != nil {
		s.log.Error("weekly report insert failed", "userId", userID, "error", err)
		return nil, fmt.Errorf("weekly report insert: %w", err)
	}
	return content, nil
}

// ReportFilter narrows and orders a report listing. Zero values mean "no
// filter" and default descending order.
type ReportFilter struct {
	Type  string
	Sort  string
	Year  int
	Month int
}

func (s *AIService) ListReports(ctx context.Context, userID string, filter ReportFilter) ([]ReportDTO, error) {
	switch filter.Type {
	case "", string(ReportTypeDaily), string(ReportTypeWeekly), string(ReportTypeWeeklyLimited):
	default:
		return nil, newValidationError("type must be one of: daily, weekly, weekly_limited.")
	}
	switch filter.Sort {
	case "", "asc", "desc":
	default:
		return nil, newValidationError("sort must be asc or desc.")
	}
	if (filter.Year == 0) != (filter.Month == 0) {
		return nil, newValidationError("year and month must be provided together.")
	}
	if filter.Month != 0 && (filter.Month < 1 || filter.Month > 12) {
		return nil, newValidationError("month must be between 1 and 12.")
	}

	reports, err := s.reports.FindAllByUser(ctx, userID)
	if err != nil {
		s.log.Error("report listing failed", "userId", userID, "error", err)
		return nil, fmt.Errorf("report listing: %w", err)
	}

	filtered := reports[:0:0]
	for _, report := range reports {
		if filter.Type != "" && string(report.Type) != filter.Type {
			continue
		}
		if filter.Year != 0 {
			if report.ReportDate.Year() != filter.Year || int(report.ReportDate.Month()) != filter.Month {
				continue
			}
		}
		filtered = append(filtered, report)
	}

	ascending := filter.Sort == "asc"
	sort.SliceStable(filtered, func(i, j int) bool {
		if ascending {
			return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
		}
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	dtos := make([]ReportDTO, 0, len(filtered))
	for _, report := range filtered {
		dtos = append(dtos, mapReportToDTO(report))
	}
	return dtos, nil
}

func (s *AIService) DeleteReport(ctx context.Context, reportID, userID string) error {
	deleted, err := s.reports.Delete(ctx, reportID, userID)
	if err != nil {
		s.log.Error("report delete failed", "userId", userID, "reportId", reportID, "error", err)
		return fmt.Errorf("report delete: %w", err)
	}
	if !deleted {
		return newValidationError("Report not found or already deleted.")
	}
	return nil
}

func (s *AIService) failProvider(err error, userID, input, fallback string) error {
	s.log.Error("ai provider call failed",
		"userId", userID,
		"input", truncateForLog(input, 120),
		"error", err,
	)
	return classifyProviderError(err, fallback)
}

func compactStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseReportDate(value string) (time.Time, error) {
	return time.Parse("2006-01-02", strings.TrimSpace(value))
}

func startOfUTCDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateForLog(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
