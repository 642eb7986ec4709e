package report

import (
	"bytes"
	"fmt"
	"time"

	"wisefido-health/internal/models"

	"github.com/xuri/excelize/v2"
)

// 工作表名
const (
	AdherenceSheet = "Adherence"
	AlertsSheet    = "Alerts"
)

// AdherenceHeader 依从性表头
var AdherenceHeader = []string{
	"Patient ID",
	"Window",
	"Window Start",
	"Window End",
	"Total",
	"Taken",
	"Missed",
	"Pending",
	"Adherence %",
}

// AlertsHeader 报警统计表头
var AlertsHeader = []string{
	"Patient ID",
	"Critical",
	"High",
	"Medium",
	"Low",
	"Active Total",
	"Resolved",
}

// PatientReport 单个患者的报表行
type PatientReport struct {
	PatientID string
	Adherence models.AdherenceSummary
	Alerts    models.AlertCounts
}

// BuildWorkbook 生成依从性和报警统计 Excel 文件
func BuildWorkbook(reports []PatientReport, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	adherenceRows := make([][]interface{}, 0, len(reports))
	alertRows := make([][]interface{}, 0, len(reports))
	for _, r := range reports {
		a := r.Adherence
		adherenceRows = append(adherenceRows, []interface{}{
			r.PatientID,
			a.Window,
			formatTime(a.WindowStart),
			formatTime(a.WindowEnd),
			a.Total,
			a.Taken,
			a.Missed,
			a.Pending,
			a.Percentage,
		})
		c := r.Alerts
		alertRows = append(alertRows, []interface{}{
			r.PatientID,
			c.Critical,
			c.High,
			c.Medium,
			c.Low,
			c.ActiveTotal(),
			c.Resolved,
		})
	}

	if err := writeSheet(f, AdherenceSheet, AdherenceHeader, adherenceRows, headerStyle); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSheet(f, AlertsSheet, AlertsHeader, alertRows, headerStyle); err != nil {
		f.Close()
		return nil, err
	}

	// 删除默认的 Sheet1
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	index, err := f.GetSheetIndex(AdherenceSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to get sheet index: %w", err)
	}
	f.SetActiveSheet(index)

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   "Health Adherence Report",
		Created: generatedAt.UTC().Format(time.RFC3339),
		Creator: "wisefido-health",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set document properties: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

// writeSheet 写入表头、数据并冻结首行
func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]interface{}, headerStyle int) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return fmt.Errorf("failed to convert column number: %w", err)
	}
	if err := f.SetColWidth(sheet, "A", "A", 38); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}
	if err := f.SetColWidth(sheet, "B", lastCol, 14); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	// 冻结表头
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		Split:       false,
		XSplit:      0,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze panes: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
