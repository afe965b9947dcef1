package content

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/example/linguaquest/pkg/models"
)

// ImportConfig defines how a lesson spreadsheet is laid out
type ImportConfig struct {
	FilePath    string // Path to the Excel or CSV file
	LevelColumn string // Column with the level title
	TitleColumn string // Column with the lesson title
	TextColumn  string // Column with the phrase text
	SheetName   string // Name of the sheet to import
	StartRow    int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig(filePath string) ImportConfig {
	return ImportConfig{
		FilePath:    filePath,
		LevelColumn: "A",
		TitleColumn: "B",
		TextColumn:  "C",
		SheetName:   "Sheet1",
		StartRow:    2, // By default, start from the second row (skip header)
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	LevelsCreated  int
	LessonsCreated int
	Skipped        int
	Errors         []string
}

// ImportLevels builds a level catalog from an Excel or CSV file. Each row is
// one lesson phrase; rows sharing a level title are grouped into one level in
// file order.
func ImportLevels(config ImportConfig) ([]models.Level, *ImportResult, error) {
	ext := strings.ToLower(filepath.Ext(config.FilePath))
	if ext == ".csv" {
		return importFromCSV(config)
	}
	return importFromExcel(config)
}

// importFromExcel reads lesson rows from an Excel workbook
func importFromExcel(config ImportConfig) ([]models.Level, *ImportResult, error) {
	f, err := excelize.OpenFile(config.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open Excel file: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(config.SheetName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get rows: %v", err)
	}

	levelIdx := columnIndex(config.LevelColumn)
	titleIdx := columnIndex(config.TitleColumn)
	textIdx := columnIndex(config.TextColumn)

	result := &ImportResult{Errors: make([]string, 0)}
	builder := newCatalogBuilder()

	for i, row := range rows {
		if i < config.StartRow-1 {
			continue
		}
		result.TotalProcessed++
		if err := builder.addRow(cell(row, levelIdx), cell(row, titleIdx), cell(row, textIdx), result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", i+1, err))
		}
	}

	return builder.levels, result, nil
}

// importFromCSV reads lesson rows from a CSV file with the same column order
func importFromCSV(config ImportConfig) ([]models.Level, *ImportResult, error) {
	f, err := os.Open(config.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open CSV file: %v", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	levelIdx := columnIndex(config.LevelColumn)
	titleIdx := columnIndex(config.TitleColumn)
	textIdx := columnIndex(config.TextColumn)

	result := &ImportResult{Errors: make([]string, 0)}
	builder := newCatalogBuilder()

	rowNum := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read CSV: %v", err)
		}
		rowNum++
		if rowNum < config.StartRow {
			continue
		}
		result.TotalProcessed++
		if err := builder.addRow(cell(row, levelIdx), cell(row, titleIdx), cell(row, textIdx), result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
		}
	}

	return builder.levels, result, nil
}

// WriteLevels saves an imported catalog back as the lessons JSON file
func WriteLevels(path string, levels []models.Level) error {
	data, err := json.MarshalIndent(levels, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal levels: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write lessons file: %v", err)
	}
	return nil
}

// catalogBuilder groups imported rows into levels, preserving file order
type catalogBuilder struct {
	levels  []models.Level
	indexOf map[string]int
}

func newCatalogBuilder() *catalogBuilder {
	return &catalogBuilder{indexOf: make(map[string]int)}
}

func (b *catalogBuilder) addRow(levelTitle, lessonTitle, text string, result *ImportResult) error {
	levelTitle = strings.TrimSpace(levelTitle)
	lessonTitle = strings.TrimSpace(lessonTitle)
	text = strings.TrimSpace(text)

	if levelTitle == "" && lessonTitle == "" && text == "" {
		result.Skipped++
		return nil
	}
	if levelTitle == "" || lessonTitle == "" || text == "" {
		result.Skipped++
		return fmt.Errorf("missing level, title or text")
	}

	idx, ok := b.indexOf[strings.ToLower(levelTitle)]
	if !ok {
		idx = len(b.levels)
		b.indexOf[strings.ToLower(levelTitle)] = idx
		b.levels = append(b.levels, models.Level{
			ID:    slugify(levelTitle),
			Title: levelTitle,
		})
		result.LevelsCreated++
	}

	level := &b.levels[idx]
	level.Lessons = append(level.Lessons, models.LessonPhrase{
		ID:    fmt.Sprintf("%s-%d", level.ID, len(level.Lessons)+1),
		Title: lessonTitle,
		Text:  text,
	})
	result.LessonsCreated++
	return nil
}

// slugify turns a title into a URL-safe lowercase id
func slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// cell safely reads a column from a row that may be shorter than expected
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// columnIndex converts a spreadsheet column letter to a zero-based index
func columnIndex(col string) int {
	col = strings.ToUpper(strings.TrimSpace(col))
	if col == "" {
		return -1
	}
	idx := 0
	for _, r := range col {
		if r < 'A' || r > 'Z' {
			return -1
		}
		idx = idx*26 + int(r-'A') + 1
	}
	return idx - 1
}
