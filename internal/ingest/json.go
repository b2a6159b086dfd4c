package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Veraticus/invoice-readiness/internal/common"
	"github.com/Veraticus/invoice-readiness/internal/model"
)

func (p *Parser) parseJSON(content []byte) ([]model.Record, error) {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty JSON document", common.ErrInvalidInput)
	}

	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON format: %v", common.ErrInvalidInput, err)
		}
		if len(items) > p.maxRows {
			items = items[:p.maxRows]
		}

		records := make([]model.Record, 0, len(items))
		for i, item := range items {
			var row model.Record
			if err := json.Unmarshal(item, &row); err != nil {
				return nil, fmt.Errorf("%w: element %d: %v", common.ErrInvalidInput, i, err)
			}
			records = append(records, row)
		}
		return records, nil

	case '{':
		var row model.Record
		if err := json.Unmarshal(trimmed, &row); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON format: %v", common.ErrInvalidInput, err)
		}
		return []model.Record{row}, nil

	default:
		return nil, fmt.Errorf("%w: JSON must be an array or object", common.ErrInvalidInput)
	}
}
