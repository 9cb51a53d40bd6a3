package spectral

const (
	// Smallest supported transform.
	minSize = 2

	// A real FFT of size N has N/2 + 1 unique complex coefficients
	// (Hermitian symmetry).
	hermitianDivisor = 2
)
