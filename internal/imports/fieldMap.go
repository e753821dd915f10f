package imports

// FieldMap is an ordered set of named column values. Setting an existing
// key replaces the value in place.
type FieldMap struct {
	keys   []string
	values map[string]FieldValue
}

func NewFieldMap() *FieldMap {
	return &FieldMap{values: make(map[string]FieldValue)}
}

func (m *FieldMap) Set(name string, value FieldValue) {
	if _, exists := m.values[name]; !exists {
		m.keys = append(m.keys, name)
	}
	m.values[name] = value
}

func (m *FieldMap) Get(name string) (FieldValue, bool) {
	value, ok := m.values[name]
	return value, ok
}

func (m *FieldMap) Has(name string) bool {
	_, ok := m.values[name]
	return ok
}

func (m *FieldMap) Len() int {
	return len(m.keys)
}

// Keys returns the column names in insertion order.
func (m *FieldMap) Keys() []string {
	keys := make([]string, len(m.keys))
	copy(keys, m.keys)
	return keys
}

// AsMap returns the values as plain Go values, Null mapped to nil.
func (m *FieldMap) AsMap() map[string]any {
	out := make(map[string]any, len(m.keys))
	for _, key := range m.keys {
		out[key] = m.values[key].Any()
	}
	return out
}

// withRideID copies the map and appends the ride_id foreign key.
func (m *FieldMap) withRideID(rideID int64) *FieldMap {
	row := &FieldMap{
		keys:   make([]string, len(m.keys), len(m.keys)+1),
		values: make(map[string]FieldValue, len(m.keys)+1),
	}
	copy(row.keys, m.keys)
	for key, value := range m.values {
		row.values[key] = value
	}
	row.Set(ColumnRideID, IntegerValue(rideID))
	return row
}
