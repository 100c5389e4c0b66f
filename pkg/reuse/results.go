package reuse

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/zhangjingcode/FAE/internal/models"
	"github.com/zhangjingcode/FAE/pkg/dataio"
	"github.com/zhangjingcode/FAE/pkg/metrics"
)

// writeCaseInfo writes one CaseName,Pred,Label row per case. The label is
// left blank for data without labels.
func writeCaseInfo(path string, dc *models.DataContainer, pred []float64) error {
	records := make([][]string, 0, len(pred)+1)
	records = append(records, []string{dataio.CaseColumn, "Pred", "Label"})
	for i, p := range pred {
		label := ""
		if dc.HasLabel {
			label = strconv.Itoa(dc.Labels[i])
		}
		records = append(records, []string{dc.CaseNames[i], dataio.FormatFloat(p), label})
	}
	return writeRecords(path, records)
}

// writeMetrics writes one name,value row per metric
func writeMetrics(path string, m metrics.Metrics) error {
	rows := m.Rows()
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, []string{row.Name, dataio.FormatFloat(row.Value)})
	}
	return writeRecords(path, records)
}

func writeRecords(path string, records [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(file)
	if err := writer.WriteAll(records); err != nil {
		file.Close()
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	return file.Close()
}
