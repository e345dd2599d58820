package weather

import "math"

// KelvinToFahrenheit converts k kelvin to degrees Fahrenheit.
func KelvinToFahrenheit(k float64) float64 {
	return (k-273.15)*1.8 + 32
}

// RoundTo rounds v half away from zero to the given number of decimals.
func RoundTo(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}

// Conversion maps a stored field value to the value served to clients.
type Conversion struct {
	Units   string
	Convert func(float64) float64
}

var conversions = map[string]Conversion{
	FieldTemperature: {Units: "degF", Convert: KelvinToFahrenheit},
	FieldVisibility:  {Units: "m"},
}

// ConversionFor returns how values of field are served. Unknown fields
// are passed through in their stored units.
func ConversionFor(field string) Conversion {
	if c, ok := conversions[field]; ok {
		return c
	}
	return Conversion{}
}

func (c Conversion) apply(v float64) float64 {
	if c.Convert == nil {
		return v
	}
	return c.Convert(v)
}
