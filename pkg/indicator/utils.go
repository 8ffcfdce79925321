package indicator

// isNaN reports whether f is NaN without importing math for one comparison.
func isNaN(f float64) bool {
	return f != f
}

func maxFloat(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minFloat(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func sumFloat(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

// pushWindow appends v to window, dropping the oldest element once cap is
// exceeded, and returns the updated slice.
func pushWindow(window []float64, v float64, capSize int) []float64 {
	window = append(window, v)
	if len(window) > capSize {
		copy(window, window[1:])
		window = window[:capSize]
	}
	return window
}
