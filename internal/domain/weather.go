package domain

import "time"

// WeatherSnapshot holds one normalized observation or forecast step.
// Numeric fields are pointers so that a reading of zero stays
// distinguishable from a missing reading. Units after normalization:
// temperature °C, humidity %, pressure hPa, wind speed m/s, wind
// direction degrees, visibility km, cloudiness %, rainfall mm.
type WeatherSnapshot struct {
	Temperature   *float64  `json:"temperature"`
	Humidity      *float64  `json:"humidity,omitempty"`
	Pressure      *float64  `json:"pressure,omitempty"`
	WindSpeed     *float64  `json:"wind_speed,omitempty"`
	WindDirection *float64  `json:"wind_direction,omitempty"`
	Visibility    *float64  `json:"visibility,omitempty"`
	Cloudiness    *float64  `json:"cloudiness,omitempty"`
	Rainfall1h    *float64  `json:"rainfall_1h,omitempty"`
	Rainfall3h    *float64  `json:"rainfall_3h,omitempty"`
	ConditionCode string    `json:"condition_code"`
	Description   string    `json:"description,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// ForecastSeries is a chronological sequence of forecast steps.
// Producers keep it ordered; the validator flags violations rather
// than reordering.
type ForecastSeries []WeatherSnapshot
