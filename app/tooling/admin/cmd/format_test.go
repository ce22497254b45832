package cmd

import "testing"

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_fmtValue(t *testing.T) {
	tt := []struct {
		name string
		val  any
		exp  string
	}{
		{name: "price", val: 5.0, exp: "5.000000"},
		{name: "small", val: 0.0000004, exp: "0.000000"},
		{name: "balance", val: 996.00698, exp: "996.006980"},
		{name: "count", val: uint64(12), exp: "12"},
	}

	t.Log("Given the need to render values for the terminal.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				if got := fmtValue(tst.val); got != tst.exp {
					t.Fatalf("\t%s\tTest %d:\tShould render %v as %q, got %q.", failed, testID, tst.val, tst.exp, got)
				}
				t.Logf("\t%s\tTest %d:\tShould render %v as %q.", success, testID, tst.val, tst.exp)
			}

			t.Run(tst.name, f)
		}
	}
}
