package features

// Default is the dictionary for the features the backend currently emits.
var Default = MustNew(map[Namespace][]Entry{
	Model: {
		// hour-window changes
		Templated{
			Pattern:     `price_pct_change_(\d+)h`,
			Name:        "Price change ({{.N}}h)",
			Description: "Percent change of the close over the last {{.N}} hours. Positive means the price rose over those {{.N}} hours, negative means it fell.",
		},
		Templated{
			Pattern:     `trade_value_pct_change_(\d+)h`,
			Name:        "Trade value change ({{.N}}h)",
			Description: "Percent change of traded value over the last {{.N}} hours. Shows how market participation shifted with volume and price.",
		},
		Templated{
			Pattern:     `rsi_pct_change_(\d+)h`,
			Name:        "RSI change ({{.N}}h)",
			Description: "Percent change of the RSI over the last {{.N}} hours. Indicates how quickly the RSI rose or fell.",
		},
		Templated{
			Pattern:     `macd_pct_change_(\d+)h`,
			Name:        "MACD change ({{.N}}h)",
			Description: "Percent change of the MACD over the last {{.N}} hours. Shows how fast momentum is changing.",
		},

		// period and lag features
		Templated{
			Pattern:     `price_std_(\d+)`,
			Name:        "Price standard deviation ({{.N}} periods)",
			Description: "Standard deviation of price over {{.N}} periods, a measure of volatility. Larger values mean wider swings.",
		},
		Templated{
			Pattern:     `body_frac_(\d+)`,
			Name:        "Body ratio (candle {{.N}} back)",
			Description: "Share of the high-low range taken by the body of the candle {{.N}} back. Large values suggest a strong bullish or bearish candle.",
		},
		Templated{
			Pattern:     `upper_wick_frac_(\d+)`,
			Name:        "Upper wick ratio (candle {{.N}} back)",
			Description: "Share of the range taken by the upper wick of the candle {{.N}} back. A long upper wick can signal selling pressure.",
		},
		Templated{
			Pattern:     `lower_wick_frac_(\d+)`,
			Name:        "Lower wick ratio (candle {{.N}} back)",
			Description: "Share of the range taken by the lower wick of the candle {{.N}} back. A long lower wick can signal buying pressure.",
		},
		Templated{
			Pattern:     `cur_pct_change_(\d+)`,
			Name:        "Candle change (candle {{.N}} back)",
			Description: "Open-to-close percent change of the candle {{.N}} back. Positive means it closed up, negative means it closed down.",
		},

		Exact{
			Key:         "trade_value_z_score",
			Name:        "Trade value z-score",
			Description: "Traded value (close x volume) standardized over the whole window. Shows how far current activity is above or below average.",
		},
		Exact{
			Key:         "rel_dist_to_bb_upper",
			Name:        "Distance to upper Bollinger band",
			Description: "Relative distance from price to the upper Bollinger band. Lower values mean price is closer to the overheated zone.",
		},
		Exact{
			Key:         "rel_dist_to_bb_lower",
			Name:        "Distance to lower Bollinger band",
			Description: "Relative distance from price to the lower Bollinger band. Lower values mean price is closer to the oversold zone.",
		},
		Exact{
			Key:         "rsi",
			Name:        "RSI",
			Description: "Relative Strength Index. High values are usually read as overbought, low values as oversold.",
		},
		Exact{
			Key:         "adx",
			Name:        "ADX",
			Description: "Average Directional Index, the strength of the current trend. Higher means a stronger trend.",
		},
		Exact{
			Key:         "rel_dist_to_signal",
			Name:        "MACD to signal distance",
			Description: "Relative distance of the MACD above or below its signal line. Positive favours upward momentum, negative downward.",
		},
		Exact{
			Key:         "hour",
			Name:        "Hour of day",
			Description: "Hour of the current candle (0-23). Captures intraday trading patterns.",
		},
	},
	Chart: {
		Exact{
			Key:         "macd_diff",
			Name:        "MACD histogram",
			Description: "Difference between the MACD and its signal line. Positive values tend to mean strengthening upward momentum.",
		},
		Exact{
			Key:         "rsi",
			Name:        "RSI",
			Description: "Momentum oscillator based on the speed of rises and falls. High values are usually read as overbought, low values as oversold.",
		},
		Exact{
			Key:         "bollinger_band_upper",
			Name:        "Upper Bollinger band",
			Description: "Upper band derived from recent volatility. Price near it can signal overheating.",
		},
		Exact{
			Key:         "bollinger_band_lower",
			Name:        "Lower Bollinger band",
			Description: "Lower band derived from recent volatility. Price near it can signal an oversold market.",
		},
		Exact{
			Key:         "bollinger_band_mavg",
			Name:        "Bollinger middle band",
			Description: "Baseline of the Bollinger bands, usually a 20-period moving average.",
		},
		Exact{
			Key:         "ema_20",
			Name:        "20-period EMA",
			Description: "Exponential moving average over 20 periods. Price above it suggests a short-term uptrend.",
		},
		Exact{
			Key:         "ema_60",
			Name:        "60-period EMA",
			Description: "Exponential moving average over 60 periods. Price above it suggests a medium-term uptrend.",
		},
		Exact{
			Key:         "adx",
			Name:        "ADX",
			Description: "Average Directional Index, the strength of the current trend. Higher means a more established trend.",
		},
		Exact{
			Key:         "atr",
			Name:        "ATR",
			Description: "Average True Range, a volatility measure from recent price ranges. Higher means a more volatile market.",
		},
	},
})
