// Package tools declares the HUD widget capabilities offered to the model and
// dispatches inbound capability requests into typed widgets.
package tools

// Widget is a typed HUD overlay produced by a capability request.
type Widget interface {
	// Kind returns the widget discriminator: weather, map, stock or info.
	Kind() string
}

// WeatherWidget shows current conditions for a location.
type WeatherWidget struct {
	Location    string
	Temperature string
	Condition   string
}

func (WeatherWidget) Kind() string { return "weather" }

// MapWidget shows a target reticle for a geographic location.
type MapWidget struct {
	Name        string
	Lat         string
	Lon         string
	Description string
}

func (MapWidget) Kind() string { return "map" }

// StockWidget shows a market data card.
type StockWidget struct {
	Symbol string
	Price  string
	Change string
	Trend  string
}

func (StockWidget) Kind() string { return "stock" }

// InfoWidget shows a general knowledge card.
type InfoWidget struct {
	Title    string
	Fact     string
	Category string
}

func (InfoWidget) Kind() string { return "info" }

var weatherConditions = []string{"sunny", "cloudy", "rain", "storm", "snow", "fog", "clear"}

var stockTrends = []string{"up", "down", "neutral"}
