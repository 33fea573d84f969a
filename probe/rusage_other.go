//go:build !unix

package probe

import "github.com/weiihann/propbench/errs"

func rusageMaxRSS() (int64, error) {
	return 0, errs.ErrMeasurementUnavailable
}
