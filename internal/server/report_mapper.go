package server

// ReportDTO is the wire shape of a stored report. Content is reduced to
// the fields the client renders for each report type.
type ReportDTO struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	ReportDate    string         `json:"reportDate"`
	ReportEndDate *string        `json:"reportEndDate"`
	Data          map[string]any `json:"data"`
}

func mapReportToDTO(report Report) ReportDTO {
	dto := ReportDTO{
		ID:         report.ID,
		Type:       string(report.Type),
		ReportDate: report.ReportDate.Format("2006-01-02"),
		Data:       map[string]any{},
	}
	if report.ReportEndDate != nil {
		end := report.ReportEndDate.Format("2006-01-02")
		dto.ReportEndDate = &end
	}

	content := report.Content
	switch report.Type {
	case ReportTypeDaily:
		copyContentFields(dto.Data, content, "detectedEmotions", "mainTriggers", "insights", "recommendations")
		// The client only shows the comparison verdict text, not the
		// raw emotion lists used to produce it.
		if comparison, ok := content["emotionComparison"].(map[string]any); ok {
			if explanation, ok := comparison["explanation"]; ok {
				dto.Data["emotionComparison"] = map[string]any{"explanation": explanation}
			}
		}
	case ReportTypeWeekly:
		copyContentFields(dto.Data, content, "dominantEmotion", "mainTrigger", "overview", "recurringPatterns", "recommendations")
	case ReportTypeWeeklyLimited:
		copyContentFields(dto.Data, content, "limitedData", "detectedEmotions", "mainTriggers", "insights", "recommendations", "note")
	default:
		for key, value := range content {
			dto.Data[key] = value
		}
	}
	return dto
}

func copyContentFields(dst, src map[string]any, keys ...string) {
	for _, key := range keys {
		if value, ok := src[key]; ok {
			dst[key] = value
		}
	}
}
