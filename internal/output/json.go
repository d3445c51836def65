package output

import (
	"encoding/json"

	"ocelot/internal/core"
)

type jsonFormatter struct{}

type resultPayload struct {
	Format  string           `json:"format"`
	Columns []string         `json:"columns,omitempty"`
	Rows    []map[string]any `json:"rows,omitempty"`
	Message string           `json:"message"`
}

// FormatResult renders a result set as a JSON document with one object
// per row.
func (jsonFormatter) FormatResult(result *core.QueryResult) (string, error) {
	payload := resultPayload{Format: string(FormatJSON)}
	if result != nil {
		payload.Columns = result.Columns
		payload.Message = result.Message
		for _, row := range result.Rows {
			obj := make(map[string]any, len(result.Columns))
			for _, col := range result.Columns {
				obj[col] = jsonValue(row[col])
			}
			payload.Rows = append(payload.Rows, obj)
		}
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func jsonValue(v core.Value) any {
	switch v.Type {
	case core.TypeInt:
		return v.Int
	case core.TypeText:
		return v.Text
	case core.TypeBoolean:
		return v.Bool
	default:
		return nil
	}
}
