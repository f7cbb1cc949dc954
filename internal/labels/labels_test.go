package labels

import "testing"

func TestMap(t *testing.T) {
	testCases := []struct {
		id   int
		want Category
	}{
		{0, NotCorn},
		{1, Diseased},
		{2, Diseased},
		{3, Healthy},
		{4, Unrecognized},
		{-1, Unrecognized},
		{1 << 20, Unrecognized},
	}

	for _, tc := range testCases {
		if got := Map(tc.id); got != tc.want {
			t.Errorf("Map(%d) = %q, want %q", tc.id, got, tc.want)
		}
	}

	if Map(1) != Map(2) {
		t.Error("Both disease classes should map to the same category")
	}
}

func TestRawName(t *testing.T) {
	testCases := []struct {
		id   int
		want string
	}{
		{0, "Bukan_Jagung"},
		{1, "Corn_Cercospora_leaf_spot Gray_leaf_spot"},
		{2, "Corn_Northern_Leaf_Blight"},
		{3, "corn_healthy"},
		{4, UnknownClass},
		{-7, UnknownClass},
	}

	for _, tc := range testCases {
		if got := RawName(tc.id); got != tc.want {
			t.Errorf("RawName(%d) = %q, want %q", tc.id, got, tc.want)
		}
	}
}

func TestParse(t *testing.T) {
	for _, c := range All() {
		got, ok := Parse(string(c))
		if !ok || got != c {
			t.Errorf("Parse(%q) = %q, %v", c, got, ok)
		}
	}
	if _, ok := Parse("Healthy"); ok {
		t.Error("Parse should be case-sensitive")
	}
}

func TestClassKey(t *testing.T) {
	testCases := map[int]string{
		3:  "corn_healthy",
		4:  "UNKNOWN_CLASS(4)",
		5:  "UNKNOWN_CLASS(5)",
		-1: "UNKNOWN_CLASS(-1)",
	}
	for id, want := range testCases {
		if got := ClassKey(id); got != want {
			t.Errorf("ClassKey(%d) = %q, want %q", id, got, want)
		}
	}
}
