package labels

import "fmt"

// Category is the human-facing outcome of a prediction.
type Category string

const (
	NotCorn      Category = "not corn"
	Diseased     Category = "diseased"
	Healthy      Category = "healthy"
	Unrecognized Category = "unrecognized"
)

// UnknownClass is the raw name reported for ids outside the training set.
const UnknownClass = "UNKNOWN_CLASS"

// rawNames are the class folder names the classifiers were trained on,
// indexed by class id.
var rawNames = [...]string{
	"Bukan_Jagung",
	"Corn_Cercospora_leaf_spot Gray_leaf_spot",
	"Corn_Northern_Leaf_Blight",
	"corn_healthy",
}

// Map collapses a raw class id into its category. Both leaf diseases report
// as Diseased; any id outside the training set is Unrecognized.
func Map(id int) Category {
	switch id {
	case 0:
		return NotCorn
	case 1, 2:
		return Diseased
	case 3:
		return Healthy
	default:
		return Unrecognized
	}
}

// RawName returns the training class name for id.
func RawName(id int) string {
	if id < 0 || id >= len(rawNames) {
		return UnknownClass
	}
	return rawNames[id]
}

// ClassKey names id uniquely: the training class name, or UNKNOWN_CLASS(id)
// for ids outside the training set.
func ClassKey(id int) string {
	if id < 0 || id >= len(rawNames) {
		return fmt.Sprintf("%s(%d)", UnknownClass, id)
	}
	return rawNames[id]
}

// All lists the categories in a stable order.
func All() []Category {
	return []Category{NotCorn, Diseased, Healthy, Unrecognized}
}

// Parse returns the category named s, if any.
func Parse(s string) (Category, bool) {
	for _, c := range All() {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}
