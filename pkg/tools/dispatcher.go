package tools

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kitts-ai/hud-live/pkg/stream"
)

const (
	widgetRendered = "Widget Rendered"

	nameWeather = "render_weather_widget"
	nameMap     = "render_map_location"
	nameStock   = "render_stock_card"
	nameInfo    = "render_info_card"
)

// Declarations returns the capability declarations advertised on session
// setup. Assistant mode only; translator sessions declare nothing.
func Declarations() []stream.CapabilityDecl {
	return []stream.CapabilityDecl{
		{
			Name:        nameWeather,
			Description: "Display a holographic weather widget to the user with current conditions.",
			Parameters: stream.ParamSchema{
				Properties: map[string]stream.ParamSpec{
					"location":    {Type: "STRING", Description: "The city or location name"},
					"temperature": {Type: "STRING", Description: "The current temperature with unit (e.g. 24°C)"},
					"condition":   {Type: "STRING", Description: "The weather condition category", Enum: weatherConditions},
				},
				Required: []string{"location", "temperature", "condition"},
			},
		},
		{
			Name:        nameMap,
			Description: "Display a tactical map target reticle for a specific geographic location.",
			Parameters: stream.ParamSchema{
				Properties: map[string]stream.ParamSpec{
					"name":        {Type: "STRING", Description: "Name of the place"},
					"lat":         {Type: "STRING", Description: "Approximate Latitude"},
					"lon":         {Type: "STRING", Description: "Approximate Longitude"},
					"description": {Type: "STRING", Description: "Short one-line tactical description of the area"},
				},
				Required: []string{"name", "lat", "lon", "description"},
			},
		},
		{
			Name:        nameStock,
			Description: "Display a financial market data card.",
			Parameters: stream.ParamSchema{
				Properties: map[string]stream.ParamSpec{
					"symbol": {Type: "STRING", Description: "Stock/Crypto Ticker (e.g. AAPL, BTC)"},
					"price":  {Type: "STRING", Description: "Current price"},
					"change": {Type: "STRING", Description: "Percentage change"},
					"trend":  {Type: "STRING", Description: "Market trend direction", Enum: stockTrends},
				},
				Required: []string{"symbol", "price", "change", "trend"},
			},
		},
		{
			Name:        nameInfo,
			Description: "Display a general knowledge or definition card.",
			Parameters: stream.ParamSchema{
				Properties: map[string]stream.ParamSpec{
					"title":    {Type: "STRING", Description: "Title of the topic"},
					"fact":     {Type: "STRING", Description: "A key summary fact (max 15 words)"},
					"category": {Type: "STRING", Description: "Category (e.g., HISTORY, SCIENCE, BIO)"},
				},
				Required: []string{"title", "fact", "category"},
			},
		},
	}
}

// Dispatcher turns capability requests into widgets and acknowledgements.
// Unknown names and malformed arguments are dropped without acknowledgement.
type Dispatcher struct {
	onWidget func(Widget)
	respond  func(stream.ToolResponse)
	logger   *zap.Logger
	dropped  atomic.Int64
}

// NewDispatcher creates a dispatcher. onWidget receives every rendered widget;
// respond delivers the acknowledgement back to the stream. Either may be nil.
func NewDispatcher(onWidget func(Widget), respond func(stream.ToolResponse), logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{onWidget: onWidget, respond: respond, logger: logger}
}

// Dispatch handles one capability request. Valid requests render the widget
// and acknowledge; everything else increments the dropped counter.
func (d *Dispatcher) Dispatch(req stream.ToolCallRequest) {
	widget, err := buildWidget(req)
	if err != nil {
		d.dropped.Add(1)
		d.logger.Warn("dropping capability request",
			zap.String("name", req.Name),
			zap.Error(err))
		return
	}
	if d.onWidget != nil {
		d.onWidget(widget)
	}
	if d.respond != nil {
		d.respond(stream.ToolResponse{ID: req.ID, Name: req.Name, Result: widgetRendered})
	}
}

// Dropped returns the number of requests rejected so far.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

func buildWidget(req stream.ToolCallRequest) (Widget, error) {
	switch req.Name {
	case nameWeather:
		condition, err := enumArg(req.Args, "condition", weatherConditions)
		if err != nil {
			return nil, err
		}
		location, err := stringArg(req.Args, "location")
		if err != nil {
			return nil, err
		}
		temperature, err := stringArg(req.Args, "temperature")
		if err != nil {
			return nil, err
		}
		return WeatherWidget{Location: location, Temperature: temperature, Condition: condition}, nil

	case nameMap:
		w := MapWidget{}
		fields := []struct {
			key string
			dst *string
		}{
			{"name", &w.Name},
			{"lat", &w.Lat},
			{"lon", &w.Lon},
			{"description", &w.Description},
		}
		for _, f := range fields {
			v, err := stringArg(req.Args, f.key)
			if err != nil {
				return nil, err
			}
			*f.dst = v
		}
		return w, nil

	case nameStock:
		trend, err := enumArg(req.Args, "trend", stockTrends)
		if err != nil {
			return nil, err
		}
		symbol, err := stringArg(req.Args, "symbol")
		if err != nil {
			return nil, err
		}
		price, err := stringArg(req.Args, "price")
		if err != nil {
			return nil, err
		}
		change, err := stringArg(req.Args, "change")
		if err != nil {
			return nil, err
		}
		return StockWidget{Symbol: symbol, Price: price, Change: change, Trend: trend}, nil

	case nameInfo:
		title, err := stringArg(req.Args, "title")
		if err != nil {
			return nil, err
		}
		fact, err := stringArg(req.Args, "fact")
		if err != nil {
			return nil, err
		}
		category, err := stringArg(req.Args, "category")
		if err != nil {
			return nil, err
		}
		return InfoWidget{Title: title, Fact: fact, Category: category}, nil

	default:
		return nil, fmt.Errorf("unknown capability %q", req.Name)
	}
}

func stringArg(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	switch v := raw.(type) {
	case string:
		if v == "" {
			return "", fmt.Errorf("empty required argument %q", key)
		}
		return v, nil
	case float64:
		// Models occasionally send numerics for string-typed fields.
		return trimFloat(v), nil
	default:
		return "", fmt.Errorf("argument %q has unexpected type %T", key, raw)
	}
}

func enumArg(args map[string]any, key string, allowed []string) (string, error) {
	v, err := stringArg(args, key)
	if err != nil {
		return "", err
	}
	for _, a := range allowed {
		if v == a {
			return v, nil
		}
	}
	return "", fmt.Errorf("argument %q value %q not in %v", key, v, allowed)
}

func trimFloat(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
