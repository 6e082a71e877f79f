package domain

// Record is a backend-agnostic projection of one search hit: field
// name to string value. Field presence is checked explicitly by the
// renderer; an absent field is never an error.
type Record map[string]string

// Field returns the value for name and whether it is present and
// non-empty.
func (r Record) Field(name string) (string, bool) {
	v, ok := r[name]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
