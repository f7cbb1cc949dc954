package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"go-leaf-inspector/pkg/models"
)

// Header is the column order of exported histories.
var Header = []string{"id", "filename", "result", "model_used", "prediction_date", "confidence", "notes"}

// WriteCSV writes records with a header row. A missing confidence is an
// empty cell.
func WriteCSV(w io.Writer, records []*models.PredictionRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, rec := range records {
		confidence := ""
		if rec.Confidence != nil {
			confidence = strconv.FormatFloat(*rec.Confidence, 'f', -1, 64)
		}
		row := []string{
			strconv.FormatInt(rec.ID, 10),
			rec.Filename,
			rec.Result,
			rec.ModelUsed,
			rec.PredictionDate,
			confidence,
			rec.Notes,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
