package pathexpr

// ExtractField compiles src (ignoring compile errors, matching the
// original Python extractor's "invalid path -> return default" behavior)
// and evaluates it against data. Empty strings and nil are treated the
// same as "not found" and yield def.
func ExtractField(data any, src string, def any) any {
	if src == "" || data == nil {
		return def
	}
	e, err := Compile(src)
	if err != nil {
		return def
	}
	v, ok := e.Eval(data)
	if !ok || v == nil {
		return def
	}
	if s, isStr := v.(string); isStr && s == "" {
		return def
	}
	return v
}

// ExtractFieldWithFallbacks tries primary, then each fallback in order,
// returning the first match that isn't nil.
func ExtractFieldWithFallbacks(data any, primary string, fallbacks []string, def any) any {
	if v := ExtractField(data, primary, nil); v != nil {
		return v
	}
	for _, fb := range fallbacks {
		if v := ExtractField(data, fb, nil); v != nil {
			return v
		}
	}
	return def
}

// AsFloat coerces common JSON-decoded numeric shapes (float64 from
// encoding/json) and int into a float64, defaulting to 0.
func AsFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

// AsInt is AsFloat truncated to int, the common case for token counts.
func AsInt(v any) int {
	return int(AsFloat(v))
}

// AsString coerces a value to a string, returning "" for anything else.
func AsString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
