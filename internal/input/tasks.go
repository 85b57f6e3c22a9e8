package input

import (
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"

	"ImageHarvester/internal/models"
	"ImageHarvester/utils"
)

// BuildTasks derives one task per row with a non-empty idField. idField must
// be one of headers; rows without a value for it are skipped. The id is
// stripped of quotes, zero padded to 12 digits and substituted for the first
// 12-digit run of sampleURL.
func BuildTasks(idField, sampleURL string, headers []string, rows []Row) ([]models.ProductTask, error) {
	if idField == "" {
		return nil, &models.StructuralError{Field: "id_field", Message: "product ID field is not set"}
	}
	if !utils.HasProductAnchor(sampleURL) {
		return nil, &models.StructuralError{Field: "sample_url", Message: fmt.Sprintf("%q contains no 12-digit product id", sampleURL)}
	}
	if !slices.Contains(headers, idField) {
		return nil, &models.StructuralError{Field: idField, Message: "product ID field not found in CSV headers"}
	}

	tasks := make([]models.ProductTask, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		// Short rows lack the trailing columns; treat them like an empty id.
		id := utils.CleanProductID(row[idField])
		if id == "" {
			skipped++
			continue
		}
		padded := utils.PadProductID(id)
		tasks = append(tasks, models.ProductTask{
			ID:  padded,
			URL: utils.ProductURL(sampleURL, padded),
		})
	}

	log.Info().Int("products", len(tasks)).Int("rows_without_id", skipped).Msg("Prepared product list")
	return tasks, nil
}
