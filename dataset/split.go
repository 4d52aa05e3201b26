package dataset

import (
	"errors"
	"fmt"
	"time"
)

// Split holds the time-partitioned subsets of a dataset.
type Split struct {
	Train *Frame
	Val   *Frame
	Test  *Frame

	ValStart  time.Time
	TestStart time.Time
}

// TimeSplit partitions a dataset into train/validation/test by two global
// date cutoffs applied across all SKUs. With max_date the latest date in
// the frame, the test set holds the last testDays calendar days and the
// validation set the valDays days before it. A partition may come out
// empty when the dataset spans fewer days than requested; callers that
// need non-empty sets must check.
func TimeSplit(f *Frame, testDays, valDays int) (Split, error) {
	if testDays <= 0 || valDays <= 0 {
		return Split{}, fmt.Errorf("testDays and valDays must be positive, got %d/%d", testDays, valDays)
	}
	if f.Len() == 0 {
		return Split{}, errors.New("dataset is empty")
	}
	maxDate, ok := f.MaxDate()
	if !ok {
		return Split{}, errors.New("dataset has no Date column")
	}

	testStart := maxDate.AddDate(0, 0, -(testDays - 1))
	valStart := testStart.AddDate(0, 0, -valDays)

	dates := f.Dates()
	trainMask := make([]bool, f.Len())
	valMask := make([]bool, f.Len())
	testMask := make([]bool, f.Len())
	for i, d := range dates {
		switch {
		case d.Before(valStart):
			trainMask[i] = true
		case d.Before(testStart):
			valMask[i] = true
		default:
			testMask[i] = true
		}
	}

	train, err := f.Select(trainMask)
	if err != nil {
		return Split{}, err
	}
	val, err := f.Select(valMask)
	if err != nil {
		return Split{}, err
	}
	test, err := f.Select(testMask)
	if err != nil {
		return Split{}, err
	}

	return Split{
		Train:     train,
		Val:       val,
		Test:      test,
		ValStart:  valStart,
		TestStart: testStart,
	}, nil
}
