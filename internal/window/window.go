// Package window builds the analysis/synthesis envelope used by the stretch
// engine and checks its overlap-add behaviour.
package window

import (
	"fmt"
	"math"

	dspwindow "gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

// Hann returns the symmetric Hann window of length n:
//
//	w[i] = 0.5 - 0.5*cos(2*pi*i/(n-1))
//
// w[0] is zero and w[n-1] is zero up to rounding. n must be at least 2.
func Hann(n int) []float64 {
	if n < minLength {
		panic(fmt.Sprintf("window: length %d is below minimum %d", n, minLength))
	}
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return dspwindow.Hann(w)
}

// OverlapProfile returns, for each position j in one hop period [0, hop),
// the sum of w over every frame covering that position in a steady-state
// overlap-add at the given hop: sum_m w[j + m*hop].
func OverlapProfile(w []float64, hop int) []float64 {
	return overlapProfile(w, hop, func(v float64) float64 { return v })
}

// OverlapProfileSquared is OverlapProfile of w squared.
func OverlapProfileSquared(w []float64, hop int) []float64 {
	return overlapProfile(w, hop, func(v float64) float64 { return v * v })
}

func overlapProfile(w []float64, hop int, f func(float64) float64) []float64 {
	if hop < 1 || hop > len(w) {
		panic(fmt.Sprintf("window: hop %d out of range for length %d", hop, len(w)))
	}
	profile := make([]float64, hop)
	for j := range profile {
		for i := j; i < len(w); i += hop {
			profile[j] += f(w[i])
		}
	}
	return profile
}

// Flatness returns max(profile) - min(profile).
func Flatness(profile []float64) float64 {
	if len(profile) == 0 {
		return 0
	}
	return floats.Max(profile) - floats.Min(profile)
}

// Tolerance is the largest overlap ripple accepted for a symmetric Hann
// window of length n at hop n/2. The symmetric window is periodic over n-1
// samples, which leaves a ripple of at most pi/(n-1) in the summed profile.
func Tolerance(n int) float64 {
	return math.Pi/float64(n-1) + toleranceSlack
}

// VerifyConstantOverlap checks that w summed at the given hop is constant
// within tol. The stretch engine relies on this to bound the window energy
// of every hop phase away from zero, so it is checked numerically for the
// window actually in use.
func VerifyConstantOverlap(w []float64, hop int, tol float64) error {
	profile := OverlapProfile(w, hop)
	if ripple := Flatness(profile); ripple > tol {
		return fmt.Errorf("window overlap at hop %d is not constant: ripple %g exceeds %g", hop, ripple, tol)
	}
	return nil
}
