package models

// Category identifies one of the fixed upload categories.
type Category string

const (
	CategoryImages Category = "images"
	CategoryPDF    Category = "pdf"
	CategoryJSON   Category = "json"
	CategoryTxt    Category = "txt"
)

// AllCategories lists every category in display and wire order.
// Submission iterates categories in exactly this order.
var AllCategories = []Category{
	CategoryImages,
	CategoryPDF,
	CategoryJSON,
	CategoryTxt,
}

// ParseCategory returns the Category for a path/query value.
func ParseCategory(s string) (Category, bool) {
	for _, c := range AllCategories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// CategorySpec describes how one category appears in the form and on the wire.
// Field is the multipart field name; keeping it in an explicit table means a
// category rename cannot silently break the wire contract.
type CategorySpec struct {
	Name   Category `yaml:"name" json:"name"`
	Field  string   `yaml:"field" json:"field"`
	Accept string   `yaml:"accept" json:"accept"`
	Label  string   `yaml:"label" json:"label"`
}
