// Package export serializes the local progress store into downloadable
// documents. This is the only path by which progress data leaves the device.
package export

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/example/linguaquest/pkg/models"
)

// JSON returns the snapshot as an indented JSON document
func JSON(snapshot *models.ProgressSnapshot) ([]byte, error) {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal progress: %v", err)
	}
	return data, nil
}

// Excel returns the snapshot as an .xlsx workbook with one sheet for lesson
// records and one for user metrics
func Excel(snapshot *models.ProgressSnapshot) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const lessonSheet = "Lessons"
	f.SetSheetName("Sheet1", lessonSheet)

	headers := []string{"Lesson", "Notes", "Last Score", "Practiced At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(lessonSheet, cell, h)
	}

	lessonIDs := make([]string, 0, len(snapshot.Records))
	for id := range snapshot.Records {
		lessonIDs = append(lessonIDs, id)
	}
	sort.Strings(lessonIDs)

	for row, id := range lessonIDs {
		record := snapshot.Records[id]
		values := []interface{}{id, "", "", ""}
		if record.Notes != nil {
			values[1] = *record.Notes
		}
		if record.LastScore != nil {
			values[2] = *record.LastScore
		}
		if record.PracticedAt != nil {
			values[3] = record.PracticedAt.Format("2006-01-02 15:04:05")
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(lessonSheet, cell, v)
		}
	}

	const metricsSheet = "Metrics"
	f.NewSheet(metricsSheet)

	metricHeaders := []string{"User", "XP", "Streak", "Updated At"}
	for i, h := range metricHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(metricsSheet, cell, h)
	}

	userIDs := make([]string, 0, len(snapshot.Meta))
	for id := range snapshot.Meta {
		userIDs = append(userIDs, id)
	}
	sort.Strings(userIDs)

	for row, id := range userIDs {
		m := snapshot.Meta[id]
		values := []interface{}{id, m.XP, m.Streak, m.UpdatedAt.Format("2006-01-02 15:04:05")}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(metricsSheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to build workbook: %v", err)
	}
	return buf.Bytes(), nil
}
