package kangaroo

import "testing"

func TestRunCheck(t *testing.T) {
	if testing.Short() {
		t.Skip("self test walks full herds")
	}
	if err := RunCheck(); err != nil {
		t.Fatal(err)
	}
}
