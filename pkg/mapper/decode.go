package mapper

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/diwise/entity-mapper/pkg/errors"
	"github.com/diwise/entity-mapper/pkg/schema"
)

// DecodeRecords decodes a response body into records. The body may be an array of
// objects, a single object, or an object holding the array under the descriptor's
// collection name. Numbers are kept as json.Number so that large identifiers survive.
func DecodeRecords(body []byte, descriptor schema.Entity) ([]Record, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.NewBadRequestDataError("empty body")
	}

	var decoded any

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	err := decoder.Decode(&decoded)
	if err != nil {
		return nil, errors.NewBadRequestDataError(fmt.Sprintf("unable to decode records: %s", err.Error()))
	}

	switch v := decoded.(type) {
	case []any:
		return toRecords(v)
	case map[string]any:
		if descriptor.Collection != "" {
			if collection, ok := v[descriptor.Collection]; ok {
				items, ok := collection.([]any)
				if !ok {
					return nil, errors.NewBadRequestDataError(fmt.Sprintf("%s is not an array", descriptor.Collection))
				}
				return toRecords(items)
			}
		}
		return []Record{v}, nil
	}

	return nil, errors.NewBadRequestDataError(fmt.Sprintf("records must be objects, not %T", decoded))
}

func toRecords(items []any) ([]Record, error) {
	records := make([]Record, 0, len(items))

	for idx, item := range items {
		record, ok := item.(map[string]any)
		if !ok {
			return nil, errors.NewBadRequestDataError(fmt.Sprintf("item %d is not an object", idx))
		}
		records = append(records, record)
	}

	return records, nil
}
