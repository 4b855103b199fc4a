package thermal

import "math"

// FrictionFactor returns the Darcy friction factor for a Reynolds number and
// relative roughness.
type FrictionFactor func(re, relativeRoughness float64) float64

// Churchill is the Churchill (1977) correlation, continuous from laminar
// through transition to fully rough flow.
func Churchill(re, relativeRoughness float64) float64 {
	if re < 1 {
		return Laminar(re, relativeRoughness)
	}
	a := math.Pow(2.457*math.Log(1/(math.Pow(7/re, 0.9)+0.27*relativeRoughness)), 16)
	b := math.Pow(37530/re, 16)
	return 8 * math.Pow(math.Pow(8/re, 12)+math.Pow(a+b, -1.5), 1.0/12)
}

// Laminar is the Hagen-Poiseuille friction factor 64/Re.
func Laminar(re, _ float64) float64 {
	return 64 / re
}
