package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// TableCategory labels the clinical content of an extracted table.
type TableCategory string

const (
	TableCategoryLabResults  TableCategory = "lab_results"
	TableCategoryMedications TableCategory = "medications"
	TableCategoryVitals      TableCategory = "vitals"
	TableCategoryGeneral     TableCategory = "general"
)

// MedicalTable is a classified tabular structure extracted during ingestion.
// RowCount and ColCount always equal len(rows) and len(headers) of the
// serialized payload. Immutable after creation; deleted with its document.
type MedicalTable struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	DocumentID     string         `gorm:"index;not null;size:36" json:"document_id"`
	TableIndex     int            `gorm:"not null" json:"table_index"`
	Headers        datatypes.JSON `json:"headers"` // []string
	Rows           datatypes.JSON `json:"rows"`    // [][]string
	RowCount       int            `json:"row_count"`
	ColCount       int            `json:"col_count"`
	PageNumber     int            `json:"page_number"`
	Confidence     float64        `json:"confidence"` // classification confidence in [0,1]
	Category       TableCategory  `gorm:"index;size:32" json:"category"`
	Entities       datatypes.JSON `json:"entities"` // []string, normalized domain entities
	SearchableText string         `gorm:"type:text" json:"searchable_text"`
	CreatedAt      time.Time      `json:"created_at"`
}

// SetHeaders serializes the header list onto the row and keeps ColCount in sync.
func (t *MedicalTable) SetHeaders(headers []string) error {
	raw, err := json.Marshal(headers)
	if err != nil {
		return err
	}
	t.Headers = datatypes.JSON(raw)
	t.ColCount = len(headers)
	return nil
}

// SetRows serializes the row data onto the row and keeps RowCount in sync.
func (t *MedicalTable) SetRows(rows [][]string) error {
	raw, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	t.Rows = datatypes.JSON(raw)
	t.RowCount = len(rows)
	return nil
}

// SetEntities serializes the extracted entity list onto the row.
func (t *MedicalTable) SetEntities(entities []string) error {
	raw, err := json.Marshal(entities)
	if err != nil {
		return err
	}
	t.Entities = datatypes.JSON(raw)
	return nil
}

// GetHeaders deserializes the header list.
func (t *MedicalTable) GetHeaders() ([]string, error) {
	var headers []string
	if len(t.Headers) == 0 {
		return nil, nil
	}
	err := json.Unmarshal(t.Headers, &headers)
	return headers, err
}

// GetRows deserializes the row data.
func (t *MedicalTable) GetRows() ([][]string, error) {
	var rows [][]string
	if len(t.Rows) == 0 {
		return nil, nil
	}
	err := json.Unmarshal(t.Rows, &rows)
	return rows, err
}
