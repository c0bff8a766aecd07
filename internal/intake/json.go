package intake

import (
	"bytes"

	"github.com/tidwall/gjson"

	"drinkpoint-api/internal/model"
)

// ParseJSON normalizes the classifier's JSON text. Chat models often wrap the object in a
// Markdown fence or add prose around it, so only the outermost {...} span is parsed.
func ParseJSON(raw []byte) (model.DrinkObservation, error) {
	body := extractObject(raw)
	if body == nil || !gjson.ValidBytes(body) {
		return model.DrinkObservation{}, ErrUnclassifiable
	}
	result := gjson.ParseBytes(body)
	if !result.IsObject() {
		return model.DrinkObservation{}, ErrUnclassifiable
	}
	fields, ok := result.Value().(map[string]interface{})
	if !ok {
		return model.DrinkObservation{}, ErrUnclassifiable
	}
	return Normalize(fields)
}

func extractObject(raw []byte) []byte {
	start := bytes.IndexByte(raw, '{')
	end := bytes.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return nil
	}
	return raw[start : end+1]
}
