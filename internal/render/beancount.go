package render

import (
	"fmt"

	"price-fetcher/internal/domain/model"
	"price-fetcher/pkg/utils"
)

// Options controls how a time series is rendered into price lines.
type Options struct {
	Base        string
	Commodities []string
	// Rounding, when non-nil, is the number of decimal places to round to.
	Rounding   *int32
	Descending bool
}

// PriceLines renders one beancount price directive per (commodity, day):
//
//	2020-05-01 price AUD 0.6543 USD
func PriceLines(series *model.TimeSeries, opts Options) ([]string, error) {
	var lines []string

	for _, commodity := range opts.Commodities {
		for _, date := range series.Dates(opts.Descending) {
			rate, found := series.Get(date)
			if !found {
				return nil, fmt.Errorf("exchange rate for date %s not present in the series", utils.FormatDate(date))
			}

			between, err := rate.RateBetween(commodity, opts.Base)
			if err != nil {
				return nil, fmt.Errorf("failed to calculate the rate between %s and %s: %w",
					commodity, opts.Base, err)
			}
			if opts.Rounding != nil {
				between = between.Round(*opts.Rounding)
			}

			lines = append(lines, fmt.Sprintf("%s price %s %s %s",
				utils.FormatDate(rate.Date), commodity, between.String(), opts.Base))
		}
	}
	return lines, nil
}
