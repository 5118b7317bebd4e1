package generator

// SchemaName - имя JSON-схемы структурированного ответа.
const SchemaName = "webgal_slice"

func textVariant(kind string) map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"type": map[string]interface{}{"const": kind},
			"text": map[string]interface{}{"type": "string", "minLength": 1},
		},
		"required":             []string{"type", "text"},
		"additionalProperties": false,
	}
}

// SliceSchema описывает ответ модели: упорядоченный список типизированных событий сцены.
func SliceSchema(minEvents, maxEvents int) map[string]interface{} {
	target := map[string]interface{}{
		"type":    "string",
		"pattern": `^runtime/[A-Za-z0-9_-]+(/[A-Za-z0-9_-]+)*\.txt$`,
	}
	option := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"label":  map[string]interface{}{"type": "string", "minLength": 1},
			"target": target,
		},
		"required":             []string{"label", "target"},
		"additionalProperties": false,
	}
	variants := []interface{}{
		textVariant("intro"),
		textVariant("narration"),
		map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"type":    map[string]interface{}{"const": "dialog"},
				"speaker": map[string]interface{}{"type": "string", "minLength": 1},
				"text":    map[string]interface{}{"type": "string", "minLength": 1},
			},
			"required":             []string{"type", "speaker", "text"},
			"additionalProperties": false,
		},
		map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"type":       map[string]interface{}{"const": "setVar"},
				"key":        map[string]interface{}{"type": "string", "pattern": "^[A-Za-z0-9_]+$"},
				"expression": map[string]interface{}{"type": "string", "minLength": 1},
			},
			"required":             []string{"type", "key", "expression"},
			"additionalProperties": false,
		},
		map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"type": map[string]interface{}{"const": "choice"},
				"options": map[string]interface{}{
					"type":     "array",
					"items":    option,
					"minItems": 2,
					"maxItems": 2,
				},
			},
			"required":             []string{"type", "options"},
			"additionalProperties": false,
		},
		map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"type": map[string]interface{}{"const": "end"},
			},
			"required":             []string{"type"},
			"additionalProperties": false,
		},
	}
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"events": map[string]interface{}{
				"type":     "array",
				"minItems": minEvents,
				"maxItems": maxEvents,
				"items":    map[string]interface{}{"anyOf": variants},
			},
		},
		"required":             []string{"events"},
		"additionalProperties": false,
	}
}
