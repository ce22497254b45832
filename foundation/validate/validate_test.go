package validate_test

import (
	"testing"

	"github.com/zuxlabs/ammledger/foundation/validate"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type model struct {
	Accounts  int     `json:"accounts" validate:"gte=1"`
	NoiseRate float64 `json:"noise_rate" validate:"gte=0,lte=1"`
}

func Test_Check(t *testing.T) {
	type table struct {
		name   string
		val    model
		fields []string
	}

	tt := []table{
		{name: "valid", val: model{Accounts: 3, NoiseRate: 0.5}},
		{name: "noaccounts", val: model{Accounts: 0, NoiseRate: 0.5}, fields: []string{"accounts"}},
		{name: "both", val: model{Accounts: -1, NoiseRate: 2}, fields: []string{"accounts", "noise_rate"}},
	}

	t.Log("Given the need to validate models.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen handling the %s model.", testID, tst.name)
				{
					err := validate.Check(tst.val)

					if len(tst.fields) == 0 {
						if err != nil {
							t.Fatalf("\t%s\tTest %d:\tShould pass validation: %v", failed, testID, err)
						}
						t.Logf("\t%s\tTest %d:\tShould pass validation.", success, testID)
						return
					}

					if !validate.IsFieldErrors(err) {
						t.Fatalf("\t%s\tTest %d:\tShould get field errors, got %v.", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould get field errors.", success, testID)

					fields := validate.GetFieldErrors(err).Fields()
					for _, name := range tst.fields {
						if _, exists := fields[name]; !exists {
							t.Fatalf("\t%s\tTest %d:\tShould report the %q field: %v", failed, testID, name, fields)
						}
					}
					t.Logf("\t%s\tTest %d:\tShould report every bad field by its json name.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}
