package convert

// 🔍 Bool reads a boolean option, defaulting to false when absent or not a
// bool
func (o Options) Bool(key string) bool {
	v, ok := o[key].(bool)
	return ok && v
}

// 🔍 String reads a string option, falling back to def when absent or not a
// string
func (o Options) String(key, def string) string {
	if v, ok := o[key].(string); ok {
		return v
	}
	return def
}
