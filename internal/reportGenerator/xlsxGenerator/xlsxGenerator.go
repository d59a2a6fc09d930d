package xlsxGenerator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hedgie-app/hedgie_tgbot/internal/model"
	"github.com/hedgie-app/hedgie_tgbot/internal/money"
	"github.com/hedgie-app/hedgie_tgbot/utils"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Portafolio"

type XLSXGenerator struct{}

func New() *XLSXGenerator {
	return &XLSXGenerator{}
}

// Generate renders a portfolio snapshot into a single-sheet spreadsheet:
// a summary block on top, one row per active position below.
func (g *XLSXGenerator) Generate(ctx context.Context, snapshot model.PortfolioSnapshot, ownerName string) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XLSXGenerator.Generate"

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	if _, err := f.NewSheet(sheetName); err != nil {
		slog.Error("got error while creating NewSheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	if err := g.fillSummary(f, snapshot, ownerName); err != nil {
		return nil, "", err
	}

	if err := g.fillPositions(f, snapshot.Positions); err != nil {
		return nil, "", err
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		slog.Error("got error while deleting Sheet1", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

func (g *XLSXGenerator) fillSummary(f *excelize.File, snapshot model.PortfolioSnapshot, ownerName string) error {
	if err := f.MergeCell(sheetName, "A1", "B1"); err != nil {
		return err
	}

	f.SetCellValue(sheetName, "A1", fmt.Sprintf("Portafolio de %s", ownerName))

	styleID, err := g.headerStyle(f, "#cfe2f3")
	if err != nil {
		return err
	}

	if err := f.SetCellStyle(sheetName, "A1", "A1", styleID); err != nil {
		return fmt.Errorf("apply style: %w", err)
	}

	rows := []struct {
		label string
		value string
	}{
		{"Saldo disponible", money.FormatCLP(snapshot.AvailableBalanceCLP)},
		{"Total invertido", money.FormatCLP(snapshot.TotalInvestedCLP)},
		{"Valor actual", money.FormatCLP(snapshot.TotalCurrentValueCLP)},
		{"Ganancia/Pérdida", money.FormatCLP(snapshot.TotalProfitLossCLP)},
		{"Ganancia/Pérdida %", fmt.Sprintf("%.2f%%", snapshot.TotalProfitLossPercent)},
	}

	for i, row := range rows {
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", i+2), row.label)
		_ = f.SetCellStr(sheetName, fmt.Sprintf("B%d", i+2), row.value)
	}

	return nil
}

func (g *XLSXGenerator) fillPositions(f *excelize.File, positions []model.ActivePosition) error {
	headerRow := 8

	if err := f.MergeCell(sheetName, fmt.Sprintf("A%d", headerRow), fmt.Sprintf("E%d", headerRow)); err != nil {
		return err
	}

	f.SetCellValue(sheetName, fmt.Sprintf("A%d", headerRow), "Inversiones activas")

	styleID, err := g.headerStyle(f, "#d9ead3")
	if err != nil {
		return err
	}

	if err := f.SetCellStyle(sheetName, fmt.Sprintf("A%d", headerRow), fmt.Sprintf("A%d", headerRow), styleID); err != nil {
		return fmt.Errorf("apply style: %w", err)
	}

	columnsRow := headerRow + 1
	_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", columnsRow), "tracker")
	_ = f.SetCellStr(sheetName, fmt.Sprintf("B%d", columnsRow), "invertido")
	_ = f.SetCellStr(sheetName, fmt.Sprintf("C%d", columnsRow), "valor actual")
	_ = f.SetCellStr(sheetName, fmt.Sprintf("D%d", columnsRow), "ganancia/pérdida")
	_ = f.SetCellStr(sheetName, fmt.Sprintf("E%d", columnsRow), "%")

	for i, position := range positions {
		rowNum := columnsRow + 1 + i
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", rowNum), position.TrackerName)
		_ = f.SetCellInt(sheetName, fmt.Sprintf("B%d", rowNum), position.InvestedCLP)
		_ = f.SetCellInt(sheetName, fmt.Sprintf("C%d", rowNum), position.CurrentValueCLP)
		_ = f.SetCellInt(sheetName, fmt.Sprintf("D%d", rowNum), position.ProfitLossCLP)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", rowNum), position.ProfitLossPercent)
	}

	return nil
}

func (g *XLSXGenerator) headerStyle(f *excelize.File, color string) (int, error) {
	return f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{color},
		},
	})
}
