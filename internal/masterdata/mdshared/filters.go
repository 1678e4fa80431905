package mdshared

// ListFilters captures the common listing parameters for master data.
type ListFilters struct {
	Search   string
	IsActive *bool
	Limit    int
	Offset   int
}

// Normalize applies listing defaults.
func (f *ListFilters) Normalize() {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}
