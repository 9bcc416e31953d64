package history

import (
	"context"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	polygonmodels "github.com/polygon-io/client-go/rest/models"

	"github.com/tantralabs/derivuniverse/models"
)

// PolygonProvider is the online index-price secondary provider: when the
// ladder finds nothing locally, it fetches daily aggregate bars from
// Polygon's HTTP API for the same request window.
type PolygonProvider struct {
	Client *polygon.Client
}

// NewPolygonProvider builds a PolygonProvider authenticated with apiKey.
func NewPolygonProvider(apiKey string) PolygonProvider {
	return PolygonProvider{Client: polygon.New(apiKey)}
}

func (p PolygonProvider) Fetch(req models.HistoryRequest) ([]models.Slice, error) {
	var slices []models.Slice
	err := withRetry(5, time.Second, func() error {
		slices = nil
		params := polygonmodels.ListAggsParams{
			Ticker:     req.Symbol.Ticker,
			Multiplier: 1,
			Timespan:   polygonmodels.Day,
			From:       polygonmodels.Millis(req.StartUTC),
			To:         polygonmodels.Millis(req.EndUTC),
		}.WithOrder(polygonmodels.Asc).WithAdjusted(true)

		iter := p.Client.ListAggs(context.Background(), params)
		for iter.Next() {
			item := iter.Item()
			t := time.Time(item.Timestamp)
			s := models.NewSlice(t)
			s.TradeBars[req.Symbol.ID()] = models.TradeBar{
				Symbol: req.Symbol, EndTime: t,
				Open: item.Open, High: item.High, Low: item.Low, Close: item.Close, Volume: item.Volume,
			}
			slices = append(slices, s)
		}
		return iter.Err()
	})
	return slices, err
}
