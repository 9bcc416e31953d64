package history

import (
	"fmt"
	"time"

	client "github.com/influxdata/influxdb1-client/v2"

	"github.com/tantralabs/derivuniverse/models"
)

// InfluxProvider is a secondary history backend for shops that warehouse
// bar/open-interest history in InfluxDB rather than flat archive files,
// connecting via client.NewHTTPClient and querying instead of writing.
type InfluxProvider struct {
	Addr, Username, Password, Database string
}

func (p InfluxProvider) Fetch(req models.HistoryRequest) ([]models.Slice, error) {
	var slices []models.Slice
	err := withRetry(5, time.Second, func() error {
		slices = nil
		c, err := client.NewHTTPClient(client.HTTPConfig{
			Addr: p.Addr, Username: p.Username, Password: p.Password,
		})
		if err != nil {
			return fmt.Errorf("history: influx connect: %w", err)
		}
		defer c.Close()

		measurement := measurementFor(req.DataType)
		q := client.NewQuery(
			fmt.Sprintf(`select open, high, low, close, volume, open_interest from %s where symbol = '%s' and time >= '%s' and time < '%s'`,
				measurement, req.Symbol.ID(), req.StartUTC.Format(time.RFC3339), req.EndUTC.Format(time.RFC3339)),
			p.Database, "ns")

		resp, err := c.Query(q)
		if err != nil {
			return fmt.Errorf("history: influx query: %w", err)
		}
		if resp.Error() != nil {
			return fmt.Errorf("history: influx result: %w", resp.Error())
		}

		slices = rowsFromInflux(resp, req)
		return nil
	})
	return slices, err
}

func measurementFor(dt models.DataType) string {
	switch dt {
	case models.Quote:
		return "quote_bars"
	case models.OpenInterestData:
		return "open_interest"
	default:
		return "trade_bars"
	}
}

func rowsFromInflux(resp *client.Response, req models.HistoryRequest) []models.Slice {
	var out []models.Slice
	for _, result := range resp.Results {
		for _, row := range result.Series {
			col := func(name string) int {
				for i, c := range row.Columns {
					if c == name {
						return i
					}
				}
				return -1
			}
			timeIdx, openIdx, highIdx, lowIdx, closeIdx, volIdx, oiIdx :=
				col("time"), col("open"), col("high"), col("low"), col("close"), col("volume"), col("open_interest")

			for _, values := range row.Values {
				if timeIdx < 0 {
					continue
				}
				ts, ok := values[timeIdx].(string)
				if !ok {
					continue
				}
				t, err := time.Parse(time.RFC3339, ts)
				if err != nil {
					continue
				}

				s := models.NewSlice(t)
				id := req.Symbol.ID()
				switch req.DataType {
				case models.OpenInterestData:
					s.OpenInterests[id] = models.OpenInterest{Symbol: req.Symbol, EndTime: t, Value: numAt(values, oiIdx)}
				case models.Quote:
					s.QuoteBars[id] = models.QuoteBar{
						Symbol: req.Symbol, EndTime: t,
						Open: numAt(values, openIdx), High: numAt(values, highIdx),
						Low: numAt(values, lowIdx), Close: numAt(values, closeIdx),
					}
				default:
					s.TradeBars[id] = models.TradeBar{
						Symbol: req.Symbol, EndTime: t,
						Open: numAt(values, openIdx), High: numAt(values, highIdx),
						Low: numAt(values, lowIdx), Close: numAt(values, closeIdx), Volume: numAt(values, volIdx),
					}
				}
				out = append(out, s)
			}
		}
	}
	return out
}

func numAt(values []interface{}, idx int) float64 {
	if idx < 0 || idx >= len(values) {
		return 0
	}
	switch v := values[idx].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return 0
	}
}
